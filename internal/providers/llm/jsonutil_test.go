package llm

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.in); got != tc.want {
				t.Fatalf("ExtractJSON() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCoercion(t *testing.T) {
	data, err := DecodeObject(`{"ok":"yes","score":"0.7","skills":["Go", 3, null],"csv":"a, b,,c","n":null}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !CoerceBool(data["ok"]) {
		t.Fatalf("expected yes to be true")
	}
	if got := CoerceFloat(data["score"]); got != 0.7 {
		t.Fatalf("CoerceFloat = %v", got)
	}
	if !math.IsNaN(CoerceFloat(data["n"])) || FloatOr(data["n"], 2) != 2 {
		t.Fatalf("missing number must be NaN / default")
	}
	if got := CoerceStrings(data["skills"]); !reflect.DeepEqual(got, []string{"Go", "3"}) {
		t.Fatalf("CoerceStrings(list) = %v", got)
	}
	if got := CoerceStrings(data["csv"]); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("CoerceStrings(csv) = %v", got)
	}
}

func TestCollect(t *testing.T) {
	chunks := make(chan string, 3)
	errs := make(chan error, 1)
	chunks <- "Hel"
	chunks <- "lo"
	close(chunks)
	close(errs)

	var seen []string
	out, err := Collect(context.Background(), chunks, errs, func(s string) { seen = append(seen, s) })
	if err != nil || out != "Hello" || len(seen) != 2 {
		t.Fatalf("Collect = %q, %v, %v", out, err, seen)
	}

	chunks = make(chan string)
	errs = make(chan error, 1)
	errs <- errors.New("quota")
	close(errs)
	if _, err := Collect(context.Background(), chunks, errs, nil); err == nil {
		t.Fatalf("expected stream error")
	}
}
