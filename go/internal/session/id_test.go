package session

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateSessionID()
		require.NoError(t, err)
		assert.Len(t, id, sessionIDLength)
		assert.NoError(t, ValidateSessionID(id))
		seen[id] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestParseDeepLink(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "app link", raw: "focusnest://buddy/abc123", want: "abc123"},
		{name: "bare id", raw: "abc123", want: "abc123"},
		{name: "surrounding whitespace and slash", raw: "  focusnest://buddy/abc123/ ", want: "abc123"},
		{name: "other scheme", raw: "studybuddy://buddy/abc123", want: "abc123"},
		{name: "https scheme", raw: "https://buddy/abc123", wantErr: true},
		{name: "http scheme", raw: "http://buddy/abc123", wantErr: true},
		{name: "wrong host", raw: "focusnest://invite/abc123", wantErr: true},
		{name: "missing id", raw: "focusnest://buddy/", wantErr: true},
		{name: "uppercase id", raw: "focusnest://buddy/ABC123", wantErr: true},
		{name: "too short", raw: "ab", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDeepLink(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDeepLinkDefaultsScheme(t *testing.T) {
	assert.Equal(t, "focusnest://buddy/abc123", BuildDeepLink("", "abc123"))
	assert.Equal(t, "studybuddy://buddy/abc123", BuildDeepLink("studybuddy", "abc123"))
}

func TestDeepLinkRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parsing a built link yields the original id", prop.ForAll(
		func(id, scheme string) bool {
			got, err := ParseDeepLink(BuildDeepLink(scheme, id))
			return err == nil && got == id
		},
		gen.RegexMatch(`[a-z0-9]{4,32}`),
		gen.RegexMatch(`[a-z][a-z0-9]{0,11}`).SuchThat(func(scheme string) bool {
			return scheme != "http" && scheme != "https"
		}),
	))

	properties.TestingRun(t)
}
