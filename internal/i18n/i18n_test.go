package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "BA Exam Generator" {
		t.Errorf("T(AppTitle) = %q, want 'BA Exam Generator'", got)
	}
	if got := T(ctx, "TypeEssay"); got != "Essay" {
		t.Errorf("T(TypeEssay) = %q, want 'Essay'", got)
	}
}

func TestTranslateKorean(t *testing.T) {
	ctx := initLang(t, "ko")

	if got := T(ctx, "TypeMultipleChoice"); got != "선다형" {
		t.Errorf("T(TypeMultipleChoice) = %q, want '선다형'", got)
	}
	if got := T(ctx, "DifficultyHigh"); got != "상" {
		t.Errorf("T(DifficultyHigh) = %q, want '상'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "PDFTotalQuestions", 1); got != "1 question" {
		t.Errorf("Tp(PDFTotalQuestions, 1) = %q, want '1 question'", got)
	}
	if got := Tp(ctx, "PDFTotalQuestions", 5); got != "5 questions" {
		t.Errorf("Tp(PDFTotalQuestions, 5) = %q, want '5 questions'", got)
	}

	ko := WithLanguage(context.Background(), "ko")
	if got := Tp(ko, "PDFTotalQuestions", 3); got != "총 3문항" {
		t.Errorf("Tp(PDFTotalQuestions, 3) ko = %q, want '총 3문항'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "LabelPoints", map[string]any{"Points": 4})
	if got != "4 points" {
		t.Errorf("Td(LabelPoints, 4) = %q, want '4 points'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestUnsupportedLanguageFallsBack(t *testing.T) {
	ctx := initLang(t, "ru")

	if got := T(ctx, "TypeEssay"); got != "Essay" {
		t.Errorf("T(TypeEssay) = %q, want fallback 'Essay'", got)
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		query  string
		cookie string
		accept string
		want   string
	}{
		{name: "default", want: "en"},
		{name: "query", query: "ko", want: "ko"},
		{name: "unsupported query", query: "xx", want: "en"},
		{name: "cookie", cookie: "ko", want: "ko"},
		{name: "query beats cookie", query: "en", cookie: "ko", want: "en"},
		{name: "accept language", accept: "ko-KR,ko;q=0.9,en;q=0.5", want: "ko"},
		{name: "accept unmatched", accept: "de-DE", want: "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = LanguageFromContext(r.Context())
			}))
			target := "/"
			if tt.query != "" {
				target += "?lang=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: langCookie, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got != tt.want {
				t.Errorf("language = %q, want %q", got, tt.want)
			}
			if tt.query == "ko" {
				found := false
				for _, c := range rec.Result().Cookies() {
					if c.Name == langCookie && c.Value == "ko" {
						found = true
					}
				}
				if !found {
					t.Error("expected language cookie to be set")
				}
			}
		})
	}
}
