package template

import (
	"testing"

	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScopeFromTextPayload(t *testing.T) {
	state := models.NewStateMap()
	state.Set("mode", "night")
	p := models.Payload{
		Data:     models.TextData("John"),
		State:    state,
		Metadata: map[string]string{"origin": "mqtt"},
	}

	scope := NewScope(p)

	assert.Equal(t, "John", scope.Data)
	assert.Equal(t, "night", scope.State["mode"])
	assert.Equal(t, "mqtt", scope.Metadata["origin"])
}

func TestRenderScalarData(t *testing.T) {
	scope := NewScope(models.Payload{Data: models.TextData("John"), State: models.NewStateMap()})

	out, err := Render("test/{{data}}", scope)

	require.NoError(t, err)
	assert.Equal(t, "test/John", out)
}

func TestRenderStateVariable(t *testing.T) {
	state := models.NewStateMap()
	state.Set("poison", "true")
	scope := NewScope(models.Payload{Data: models.EmptyData(), State: state})

	out, err := Render("{{#state.poison}}poisoned{{/state.poison}}", scope)

	require.NoError(t, err)
	assert.Equal(t, "poisoned", out)
}

func TestWithRequestExposesSegments(t *testing.T) {
	scope := NewScope(models.Payload{Data: models.EmptyData(), State: models.NewStateMap()})
	scope = scope.WithRequest("POST", "/lights/kitchen/on", "", nil)

	assert.Equal(t, []string{"lights", "kitchen", "on"}, scope.Segments)
	assert.Equal(t, "/lights/kitchen/on", scope.URL)

	out, err := Render("{{#segments}}{{.}}-{{/segments}}", scope)
	require.NoError(t, err)
	assert.Equal(t, "lights-kitchen-on-", out)
}

func TestRenderUnresolvedVariableIsEmpty(t *testing.T) {
	scope := NewScope(models.Payload{Data: models.EmptyData(), State: models.NewStateMap()})

	out, err := Render("[{{missing}}]", scope)

	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}
