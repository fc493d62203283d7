package matcher

import (
	"reflect"
	"testing"
)

func TestMatchAppointments(t *testing.T) {
	t.Parallel()
	titles := []string{"dentist appointment", "eye doctor appointment"}

	got := Match(titles, "appointment")
	if got.Kind != Ambiguous || !reflect.DeepEqual(got.Indices, []int{0, 1}) {
		t.Fatalf("Match(appointment) = %+v, want ambiguous [0 1]", got)
	}

	got = Match(titles, "dentist")
	if got.Kind != Unique || got.Index() != 0 {
		t.Fatalf("Match(dentist) = %+v, want unique 0", got)
	}
}

func TestMatchCases(t *testing.T) {
	t.Parallel()
	titles := []string{"Pay the RENT", "call mum", "buy milk", "Dentist appointment"}

	cases := []struct {
		query string
		kind  Kind
		want  []int
	}{
		{"delete the rent reminder", Unique, []int{0}},
		{"cancel the one about milk", Unique, []int{2}},
		{"cancel it", None, nil},
		{"delete the DENTIST!!", Unique, []int{3}},
		{"a b c", None, nil},
		{"", None, nil},
		{"rent, dentist", Ambiguous, []int{0, 3}},
		{"reminder", None, nil},
	}
	for _, tc := range cases {
		got := Match(titles, tc.query)
		if got.Kind != tc.kind {
			t.Fatalf("Match(%q).Kind = %s, want %s", tc.query, got.Kind, tc.kind)
		}
		if tc.want != nil && !reflect.DeepEqual(got.Indices, tc.want) {
			t.Fatalf("Match(%q).Indices = %v, want %v", tc.query, got.Indices, tc.want)
		}
	}
}

func TestTokensDropShortWordsAndPunctuation(t *testing.T) {
	t.Parallel()
	got := Tokens("Move the gym: to 9, please!")
	want := []string{"move", "please"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokens() = %v, want %v", got, want)
	}
	if idx := (Result{Kind: None}).Index(); idx != -1 {
		t.Fatalf("Index() on none = %d, want -1", idx)
	}
}
