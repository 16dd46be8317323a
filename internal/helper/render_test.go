package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	values := map[string]string{"name": "Dana", "phone": "972501234567"}

	assert.Equal(t, "Hi Dana (972501234567)", RenderTemplate("Hi <name> (<phone>)", values))
	assert.Equal(t, "Hi Dana", RenderTemplate("Hi < name >", values))
	assert.Equal(t, "Code <unknown> stays", RenderTemplate("Code <unknown> stays", values))
	assert.Equal(t, "a < b and c > d", RenderTemplate("a < b and c > d", nil))
	assert.Equal(t, "", RenderTemplate("", values))
}

func TestRenderTemplateSpintax(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := RenderTemplate("{Hi|Hello} <name>", map[string]string{"name": "Dana"})
		assert.Contains(t, []string{"Hi Dana", "Hello Dana"}, got)
	}
}

func TestRenderSpintax(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[RenderSpintax("{a|b|c}")] = true
	}
	assert.Len(t, seen, 3)

	assert.Equal(t, "plain text", RenderSpintax("plain text"))
	assert.Equal(t, "single", RenderSpintax("{single}"))
	assert.Equal(t, "open { brace", RenderSpintax("open { brace"))
}

func TestRenderDynamicVariables(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{6, "Good morning"},
		{13, "Good afternoon"},
		{18, "Good evening"},
		{23, "Good night"},
		{2, "Good night"},
	}
	for _, tt := range tests {
		now := time.Date(2026, 3, 4, tt.hour, 0, 0, 0, time.UTC)
		assert.Equal(t, tt.want, RenderDynamicVariables("{TIME_GREETING}", now))
	}

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "Wednesday 4.3.2026", RenderDynamicVariables("{DAY_NAME} {DATE}", now))
}
