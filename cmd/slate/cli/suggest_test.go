// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1}, // substitution
		{"abc", "ab", 1},  // deletion
		{"ab", "abc", 1},  // insertion
		{"abc", "bac", 2}, // transposition (counted as 2 edits)
		{"kitten", "sitting", 3},
		{"status", "stauts", 2},
		{"boards", "boads", 1},
		{"deliveries", "deliveris", 1},
		{"credential", "credental", 1},
		{"replay", "repaly", 2},
	}

	for _, test := range tests {
		t.Run(test.a+"_"+test.b, func(t *testing.T) {
			got := levenshtein(test.a, test.b)
			if got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
		})
	}
}

func TestLevenshtein_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"abc", "abd"},
		{"hello", "helo"},
		{"boards", "boads"},
	}

	for _, pair := range pairs {
		forward := levenshtein(pair[0], pair[1])
		reverse := levenshtein(pair[1], pair[0])
		if forward != reverse {
			t.Errorf("levenshtein(%q, %q) = %d, but reverse = %d",
				pair[0], pair[1], forward, reverse)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{
		{Name: "status"},
		{Name: "boards"},
		{Name: "push"},
		{Name: "deliveries"},
		{Name: "credential"},
	}

	tests := []struct {
		input string
		want  string
	}{
		{"stauts", "status"},        // transposition
		{"boads", "boards"},         // missing letter
		{"boardss", "boards"},       // extra letter
		{"pussh", "push"},           // extra letter
		{"deliveris", "deliveries"}, // missing letter
		{"credental", "credential"}, // missing letter
		{"zzzzzzzzz", ""},           // nothing close
		{"b", ""},                   // too short to match well
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got := suggestCommand(test.input, commands)
			if got != test.want {
				t.Errorf("suggestCommand(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestSuggestFlag(t *testing.T) {
	makeFlagSet := func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flagSet.String("socket", "", "")
		flagSet.String("config", "", "")
		flagSet.String("repo", "", "")
		flagSet.String("credential", "", "")
		flagSet.Bool("sync", false, "")
		return flagSet
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "close typo with double dash",
			args: []string{"--sockt"},
			want: "--socket",
		},
		{
			name: "close typo with single dash",
			args: []string{"-sockt"},
			want: "--socket",
		},
		{
			name: "credential typo",
			args: []string{"--credentail"},
			want: "--credential",
		},
		{
			name: "repo typo",
			args: []string{"--repoo"},
			want: "--repo",
		},
		{
			name: "nothing close",
			args: []string{"--zzzzzzzzz"},
			want: "",
		},
		{
			name: "no flags",
			args: []string{"positional"},
			want: "",
		},
		{
			name: "flag with equals",
			args: []string{"--sockt=/run/slate/github.sock"},
			want: "--socket",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := suggestFlag(test.args, makeFlagSet())
			if got != test.want {
				t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
			}
		})
	}
}
