package toolcall

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(
		Spec{Name: "rank_papers", Required: []string{"date"}},
		Spec{Name: "discuss_papers", Required: []string{"date"}, Optional: []string{"focus"}},
	)
}

func TestParse(t *testing.T) {
	t.Run("No tools block yields nothing", func(t *testing.T) {
		invocations, err := Parse("Just a plain answer with no calls.", testRegistry())
		require.NoError(t, err)
		assert.Nil(t, invocations)
	})

	t.Run("Empty block yields nothing", func(t *testing.T) {
		invocations, err := Parse("prefix <tools>   </tools> suffix", testRegistry())
		require.NoError(t, err)
		assert.Nil(t, invocations)
	})

	t.Run("Single call with one argument", func(t *testing.T) {
		invocations, err := Parse("Sure. <tools>rank_papers(date='2025-06-10')</tools>", testRegistry())
		require.NoError(t, err)
		require.Len(t, invocations, 1)
		assert.Equal(t, "rank_papers", invocations[0].Name)
		assert.Equal(t, "2025-06-10", invocations[0].Arguments["date"])
	})

	t.Run("Multiple calls separated by semicolons", func(t *testing.T) {
		text := "<tools>rank_papers(date='2025-06-10'); discuss_papers(date='2025-06-10', focus='agents')</tools>"
		invocations, err := Parse(text, testRegistry())
		require.NoError(t, err)
		require.Len(t, invocations, 2)
		assert.Equal(t, "discuss_papers", invocations[1].Name)
		assert.Equal(t, "agents", invocations[1].Arguments["focus"])
	})

	t.Run("Trailing semicolon is tolerated", func(t *testing.T) {
		invocations, err := Parse("<tools>rank_papers(date='2025-06-10');</tools>", testRegistry())
		require.NoError(t, err)
		assert.Len(t, invocations, 1)
	})

	t.Run("Double-quoted value is rejected", func(t *testing.T) {
		_, err := Parse(`<tools>rank_papers(date="2025-06-10")</tools>`, testRegistry())
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Reason, "single quotes")
	})

	t.Run("Unquoted value is rejected", func(t *testing.T) {
		_, err := Parse("<tools>rank_papers(date=2025-06-10)</tools>", testRegistry())
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Reason, "unquoted")
	})

	t.Run("Placeholder token is rejected", func(t *testing.T) {
		_, err := Parse("<tools>rank_papers(date='<YYYY-MM-DD>')</tools>", testRegistry())
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Reason, "placeholder")
	})

	t.Run("One bad call fails the whole batch", func(t *testing.T) {
		text := "<tools>rank_papers(date='2025-06-10'); rank_papers(date=broken)</tools>"
		invocations, err := Parse(text, testRegistry())
		require.Error(t, err)
		assert.Nil(t, invocations)
	})

	t.Run("Unterminated quote is rejected", func(t *testing.T) {
		_, err := Parse("<tools>rank_papers(date='2025-06-10)</tools>", testRegistry())
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("Duplicate parameter is rejected", func(t *testing.T) {
		_, err := Parse("<tools>discuss_papers(date='a', date='b')</tools>", testRegistry())
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Reason, "duplicate")
	})

	t.Run("Nil registry skips validation", func(t *testing.T) {
		invocations, err := Parse("<tools>anything_goes(x='1')</tools>", nil)
		require.NoError(t, err)
		require.Len(t, invocations, 1)
		assert.Equal(t, "anything_goes", invocations[0].Name)
	})
}

func TestRegistryValidate(t *testing.T) {
	registry := testRegistry()

	t.Run("Unknown tool", func(t *testing.T) {
		_, err := Parse("<tools>summon_papers(date='2025-06-10')</tools>", registry)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "unknown tool", parseErr.Reason)
	})

	t.Run("Missing required parameter", func(t *testing.T) {
		_, err := Parse("<tools>rank_papers()</tools>", registry)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Reason, "missing required")
	})

	t.Run("Unexpected parameter", func(t *testing.T) {
		_, err := Parse("<tools>rank_papers(date='2025-06-10', verbose='yes')</tools>", registry)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Reason, "unexpected parameter")
	})

	t.Run("Optional parameter accepted", func(t *testing.T) {
		err := registry.Validate(Invocation{
			Name:      "discuss_papers",
			Arguments: map[string]string{"date": "2025-06-10", "focus": "RL"},
		})
		assert.NoError(t, err)
	})

	t.Run("ParseError unwraps as itself", func(t *testing.T) {
		err := registry.Validate(Invocation{Name: "nope", Arguments: map[string]string{}})
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr))
	})
}
