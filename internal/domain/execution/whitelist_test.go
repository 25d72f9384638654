package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		whitelist Whitelist
		want      []string
	}{
		{
			name:      "filters commands outside the whitelist",
			requested: []string{"echo hi", "sleep 100"},
			whitelist: NewWhitelist("echo hi"),
			want:      []string{"echo hi"},
		},
		{
			name:      "removes duplicates",
			requested: []string{"ls", "ls", "pwd", "ls"},
			whitelist: NewWhitelist("ls", "pwd"),
			want:      []string{"ls", "pwd"},
		},
		{
			name:      "exact match only",
			requested: []string{"ls ", "LS", "ls -l"},
			whitelist: NewWhitelist("ls"),
			want:      []string{},
		},
		{
			name:      "empty request",
			requested: nil,
			whitelist: NewWhitelist("ls"),
			want:      []string{},
		},
		{
			name:      "empty whitelist",
			requested: []string{"ls"},
			whitelist: NewWhitelist(),
			want:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, Validate(tt.requested, tt.whitelist))
		})
	}
}

func TestValidate_Properties(t *testing.T) {
	requested := []string{"a", "b", "a", "c", "d", "b", "e", ""}
	whitelist := NewWhitelist("a", "b", "e", "z", "")

	got := Validate(requested, whitelist)

	seen := make(map[string]bool)
	for _, cmd := range got {
		assert.True(t, whitelist.Contains(cmd), "%q must be whitelisted", cmd)
		assert.Contains(t, requested, cmd)
		assert.False(t, seen[cmd], "%q must not repeat", cmd)
		seen[cmd] = true
	}

	again := Validate(got, whitelist)
	assert.ElementsMatch(t, got, again, "validate must be idempotent")
}
