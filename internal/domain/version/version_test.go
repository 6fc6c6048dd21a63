package version

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input   string
		major   int
		minor   int
		sub     [3]int
		master  bool
		variant bool
		edition string
		render  string
	}{
		{input: "13.0", major: 13, minor: 0, render: "13.0"},
		{input: " 17.0 ", major: 17, minor: 0, render: "17.0"},
		{input: "16", major: 16, render: "16.0"},
		{input: "master", master: true, render: "master"},
		{input: "MASTER", master: true, render: "master"},
		{input: "saas~16.4", major: 16, minor: 4, variant: true, render: "saas-16.4"},
		{input: "saas-16.4", major: 16, minor: 4, variant: true, render: "saas-16.4"},
		{input: "saas-6", major: 8, minor: 6, variant: true, render: "saas-8.6"},
		{input: "saas-14", major: 10, minor: 14, variant: true, render: "saas-10.14"},
		{input: "16.0.1.2", major: 16, sub: [3]int{1, 2, 0}, render: "16.0"},
		{input: "16.0.1.2.3", major: 16, sub: [3]int{1, 2, 3}, render: "16.0"},
		{input: "17.0+e", major: 17, edition: "e", render: "17.0"},
		{input: "saas~17.2e", major: 17, minor: 2, variant: true, edition: "e", render: "saas-17.2"},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			v, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.major, v.Major())
			assert.Equal(t, tc.minor, v.Minor())
			assert.Equal(t, tc.sub, v.Sub())
			assert.Equal(t, tc.master, v.Master())
			assert.Equal(t, tc.variant, v.Variant())
			assert.Equal(t, tc.edition, v.Edition())
			assert.Equal(t, tc.render, v.String())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "17.x", "saas-", "1.2.3.4.5.6", "17.0-beta", "main"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidVersion))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, input := range []string{"8.0", "13.0", "saas~16.4", "saas-6", "saas-11.3", "master", "17.0.1.0.0+e", "18.2"} {
		first := MustParse(input)
		second, err := Parse(first.String())
		require.NoError(t, err, input)
		third, err := Parse(second.String())
		require.NoError(t, err, input)
		assert.Equal(t, first.String(), second.String(), input)
		assert.Equal(t, second, third, input)
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{a: "master", b: "18.0", want: -1},
		{a: "18.0", b: "master", want: 1},
		{a: "master", b: "master", want: 0},
		{a: "16.0", b: "17.0", want: -1},
		{a: "16.4", b: "saas~16.4", want: -1},
		{a: "saas~16.4", b: "16.4", want: 1},
		{a: "saas~16.3", b: "16.4", want: -1},
		{a: "1.2.0.0", b: "1.2", want: 0},
		{a: "16.0.1", b: "16.0.1.0.0", want: 0},
		{a: "16.0.1", b: "16.0.2", want: -1},
		{a: "17.0", b: "17.0+e", want: -1},
	}

	for _, tc := range cases {
		t.Run(tc.a+" vs "+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.want, Compare(MustParse(tc.a), MustParse(tc.b)))
		})
	}
}

func TestSortOrder(t *testing.T) {
	inputs := []string{"saas~17.2", "17.0", "master", "saas-6", "16.0", "saas~16.4", "8.0"}
	versions := make([]Version, 0, len(inputs))
	for _, input := range inputs {
		versions = append(versions, MustParse(input))
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Less(versions[j]) })

	var got []string
	for _, v := range versions {
		got = append(got, v.String())
	}
	assert.Equal(t, []string{"master", "8.0", "saas-8.6", "16.0", "saas-16.4", "17.0", "saas-17.2"}, got)
}

func TestBranch(t *testing.T) {
	assert.Equal(t, "master", Master.Branch())
	assert.Equal(t, "17.0", MustParse("17.0").Branch())
	assert.Equal(t, "saas-6", MustParse("saas-6").Branch())
	assert.Equal(t, "saas-16.4", MustParse("saas~16.4").Branch())
}
