package generate

import (
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/pavelanni/examgen/internal/diagram"
	"github.com/pavelanni/examgen/internal/model"
)

// Slot is one planned question.
type Slot struct {
	Index       int
	Type        model.QuestionType
	Difficulty  model.Difficulty
	SubjectArea string
	Visual      bool
	VisualKind  diagram.Kind
}

// Apportion splits total into integer parts proportional to percents using the
// largest-remainder method. Every part is within one of its exact share and the
// parts always sum to total when percents sum to 100. Ties go to the earlier entry.
func Apportion(total int, percents []int) []int {
	counts := make([]int, len(percents))
	if total <= 0 || len(percents) == 0 {
		return counts
	}
	sum := 0
	for _, p := range percents {
		sum += p
	}
	if sum <= 0 {
		return counts
	}
	type rem struct {
		i int
		r int
	}
	rems := make([]rem, len(percents))
	assigned := 0
	for i, p := range percents {
		counts[i] = total * p / sum
		rems[i] = rem{i, total * p % sum}
		assigned += counts[i]
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].r > rems[b].r })
	for k := 0; assigned < total; k++ {
		counts[rems[k%len(rems)].i]++
		assigned++
	}
	return counts
}

// Plan lays out the slots for a request. The result depends only on the request,
// including its seed.
func Plan(req model.GenerationRequest) []Slot {
	n := req.Total
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(uint64(req.Seed), uint64(n)))

	types := expand(model.QuestionTypes, Apportion(n, []int{
		req.Types.MultipleChoice, req.Types.ShortAnswer, req.Types.Essay,
	}))
	rng.Shuffle(len(types), func(i, j int) { types[i], types[j] = types[j], types[i] })

	levels := expand(model.Difficulties, Apportion(n, []int{
		req.Difficulty.Low, req.Difficulty.Medium, req.Difficulty.High,
	}))
	rng.Shuffle(len(levels), func(i, j int) { levels[i], levels[j] = levels[j], levels[i] })

	subjects := append([]string(nil), req.SubjectAreas...)
	rng.Shuffle(len(subjects), func(i, j int) { subjects[i], subjects[j] = subjects[j], subjects[i] })

	slots := make([]Slot, n)
	for i := range slots {
		slots[i] = Slot{Index: i, Type: types[i], Difficulty: levels[i]}
		if len(subjects) > 0 {
			slots[i].SubjectArea = subjects[i%len(subjects)]
		}
	}

	visuals := Apportion(n, []int{req.VisualPercent, 100 - req.VisualPercent})[0]
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return VisualAffinity(slots[order[a]].SubjectArea) > VisualAffinity(slots[order[b]].SubjectArea)
	})
	for _, i := range order[:visuals] {
		slots[i].Visual = true
		slots[i].VisualKind = KindFor(slots[i].SubjectArea)
	}
	return slots
}

func expand[T any](values []T, counts []int) []T {
	var out []T
	for i, v := range values {
		for range counts[i] {
			out = append(out, v)
		}
	}
	return out
}

var visualSubjects = []string{
	"데이터 모델링",
	"프로세스 모델링 – 설계",
	"인터페이스 설계",
	"msa 서비스 설계",
	"화면정의",
	"data model",
	"design",
	"screen",
}

// VisualAffinity ranks how well a subject area lends itself to a diagram.
func VisualAffinity(subject string) int {
	s := strings.ToLower(subject)
	for _, v := range visualSubjects {
		if strings.Contains(s, v) {
			return 1
		}
	}
	return 0
}

// KindFor picks the diagram kind for a subject area.
func KindFor(subject string) diagram.Kind {
	s := strings.ToLower(subject)
	has := func(keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(s, k) {
				return true
			}
		}
		return false
	}
	switch {
	case has("인터페이스", "화면", "interface", "screen"):
		return diagram.KindUIMockup
	case has("논리", "logical"):
		return diagram.KindERD
	case has("물리", "표준", "physical", "standard"):
		return diagram.KindTable
	case has("데이터 모델링", "data model"):
		return diagram.KindERD
	case has("설계", "design"):
		return diagram.KindUML
	default:
		return diagram.KindFlowchart
	}
}
