package doctor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolVersion(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "standard", input: "git version 2.39.1", want: "v2.39.1", wantOK: true},
		{name: "apple", input: "git version 2.39.1 (Apple Git-143)", want: "v2.39.1", wantOK: true},
		{name: "windows", input: "git version 2.42.0.windows.1", want: "v2.42.0", wantOK: true},
		{name: "no patch", input: "git version 2.30", want: "v2.30.0", wantOK: true},
		{name: "invalid", input: "version unknown", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseToolVersion(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestOsCaveats(t *testing.T) {
	t.Parallel()
	assert.NotEmpty(t, osCaveats("windows"))
	assert.Empty(t, osCaveats("linux"))
}

func TestSelfCheckWithoutGit(t *testing.T) {
	missing := func(string) (string, error) { return "", errors.New("not found") }
	result, err := SelfCheck(context.Background(), missing)
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "missing_dependency", result.Issues[0].Kind)
	assert.NotEmpty(t, result.Warnings)
}
