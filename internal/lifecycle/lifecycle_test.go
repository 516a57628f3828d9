package lifecycle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvoskov/outreach-bot/internal/models"
)

func TestNext(t *testing.T) {
	c := New(nil, nil, 0)

	tests := []struct {
		name    string
		current models.ClientStatus
		text    string
		want    models.ClientStatus
	}{
		{
			name:    "stop request rejects a new client",
			current: models.StatusNew,
			text:    "не пиши мне больше",
			want:    models.StatusRejected,
		},
		{
			name:    "rejection is case-insensitive",
			current: models.StatusContacted,
			text:    "СПАМ",
			want:    models.StatusRejected,
		},
		{
			name:    "meeting request marks interested",
			current: models.StatusContacted,
			text:    "хочу записаться на встречу",
			want:    models.StatusInterested,
		},
		{
			name:    "long reply marks engaged",
			current: models.StatusContacted,
			text:    strings.Repeat("очень интересный рассказ ", 4),
			want:    models.StatusEngaged,
		},
		{
			name:    "short first reply marks contacted",
			current: models.StatusNew,
			text:    "привет",
			want:    models.StatusContacted,
		},
		{
			name:    "short reply keeps current status",
			current: models.StatusEngaged,
			text:    "ок",
			want:    models.StatusEngaged,
		},
		{
			name:    "rejection wins over interest keywords",
			current: models.StatusContacted,
			text:    "встреча не интересует",
			want:    models.StatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Next(tt.current, tt.text))
		})
	}
}

func TestRejectedIsTerminal(t *testing.T) {
	c := New(nil, nil, 0)

	for _, text := range []string{
		"хочу записаться на консультацию",
		strings.Repeat("передумал, давайте поговорим подробнее ", 3),
		"привет",
	} {
		assert.Equal(t, models.StatusRejected, c.Next(models.StatusRejected, text))
	}
}

func TestCustomLexicon(t *testing.T) {
	c := New([]string{"stop"}, []string{"demo"}, 100)

	assert.Equal(t, models.StatusRejected, c.Next(models.StatusNew, "please STOP messaging me"))
	assert.Equal(t, models.StatusInterested, c.Next(models.StatusContacted, "can I get a demo?"))
	// Below the custom threshold, so not engaged.
	assert.Equal(t, models.StatusContacted, c.Next(models.StatusContacted, strings.Repeat("a", 60)))
}
