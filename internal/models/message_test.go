package models_test

import (
	"testing"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestTurns(t *testing.T) {
	msgs := []models.Message{
		{ID: "1", Role: models.RoleAssistant, Text: "Hello", Greeting: true},
		{ID: "2", Role: models.RoleUser, Text: "My chest hurts"},
		{ID: "3", Role: models.RoleAssistant},
		{ID: "4", Role: models.RoleUser, Text: "Still there?"},
	}

	assert.Equal(t, []models.Turn{
		{Role: models.RoleAssistant, Text: "Hello"},
		{Role: models.RoleUser, Text: "My chest hurts"},
		{Role: models.RoleUser, Text: "Still there?"},
	}, models.Turns(msgs))
	assert.Empty(t, models.Turns(nil))
}

func TestNewIDOrdered(t *testing.T) {
	a := models.NewID()
	b := models.NewID()
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
}
