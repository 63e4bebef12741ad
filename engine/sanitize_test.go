package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Name", "Name"},
		{"Email Address!", "Email_Address_"},
		{"first-name", "first_name"},
		{"2024 Revenue", "_2024_Revenue"},
		{"金額", "金額"},
		{"売上(円)", "売上_円_"},
		{"", "column"},
		{"   ", "column"},
		{"a;DROP TABLE x", "a_DROP_TABLE_x"},
		{`quo"ted`, "quo_ted"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeIdentifier(tc.in), "input %q", tc.in)
	}
}

func TestUniqueIdentifierIsCaseInsensitive(t *testing.T) {
	taken := map[string]bool{"name": true, "name_1": true}
	lookup := func(s string) bool { return taken[strings.ToLower(s)] }

	assert.Equal(t, "Name_2", UniqueIdentifier("Name", lookup))
	assert.Equal(t, "age", UniqueIdentifier("age", lookup))
}

func TestNewInternalTableName(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		name := NewInternalTableName()
		assert.Regexp(t, InternalTablePattern, name)
		assert.False(t, seen[name])
		seen[name] = true
	}
}
