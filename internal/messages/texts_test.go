package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreComplete(t *testing.T) {
	def := Default()
	for name, ptr := range def.fields() {
		if name == "document_caption" {
			continue
		}
		assert.NotEmpty(t, *ptr, name)
	}
	_, err := NewCatalog(def)
	require.NoError(t, err)
}

func TestWithDefaultsKeepsOverrides(t *testing.T) {
	got := Texts{Offer: "custom offer"}.WithDefaults()
	assert.Equal(t, "custom offer", got.Offer)
	assert.Equal(t, Default().Warmup1, got.Warmup1)
}

func TestRender(t *testing.T) {
	c := MustCatalog()

	out, err := c.Render(c.ThankYou, map[string]any{"name": "Иван"})
	require.NoError(t, err)
	assert.Contains(t, out, "Спасибо, Иван!")

	out, err = c.Render(c.AlreadyReceived, map[string]any{"admin_username": "support"})
	require.NoError(t, err)
	assert.Contains(t, out, "@support")

	out, err = c.Render(c.AlreadyReceived, map[string]any{"admin_username": ""})
	require.NoError(t, err)
	assert.NotContains(t, out, "@")

	out, err = c.Render(c.Stats, map[string]any{
		"total": 3, "with_contact": 1, "without_contact": 2, "subscribed": 3, "conversion": "33.3",
		"by_status": []map[string]any{{"status": "offer_sent", "count": 2}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Всего пользователей: 3")
	assert.Contains(t, out, "• offer_sent: 2")
}

func TestBrokenOverrideFailsAtStartup(t *testing.T) {
	_, err := NewCatalog(Texts{Offer: "{% if %}"})
	assert.Error(t, err)
}
