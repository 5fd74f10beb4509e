package mqttpool

import (
	"testing"

	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }

func TestTopicMatchesPlusWildcard(t *testing.T) {
	assert.True(t, topicMatches("test/+", "test/peter"))
	assert.True(t, topicMatches("test/+", "test/john"))
	assert.False(t, topicMatches("test/+", "test/peter/extra"))
	assert.False(t, topicMatches("test/+", "other/peter"))
}

func TestTopicMatchesHashWildcard(t *testing.T) {
	assert.True(t, topicMatches("test/#", "test/a/b/c"))
	assert.True(t, topicMatches("test/#", "test"))
	assert.True(t, topicMatches("#", "anything/at/all"))
}

func TestTopicMatchesExact(t *testing.T) {
	assert.True(t, topicMatches("test/david", "test/david"))
	assert.False(t, topicMatches("test/david", "test/peter"))
}

func TestValidTopicPatternAcceptsWellFormed(t *testing.T) {
	assert.True(t, ValidTopicPattern("test/david"))
	assert.True(t, ValidTopicPattern("test/+"))
	assert.True(t, ValidTopicPattern("test/#"))
	assert.True(t, ValidTopicPattern("#"))
}

func TestValidTopicPatternRejectsMalformed(t *testing.T) {
	assert.False(t, ValidTopicPattern(""))
	assert.False(t, ValidTopicPattern("test/a#"))
	assert.False(t, ValidTopicPattern("test/#/b"))
	assert.False(t, ValidTopicPattern("test/a+"))
}

func TestMatchingEntriesFiltersByTopicAndBody(t *testing.T) {
	entries := []subEntry{
		{pattern: "test/+", eventName: "s", rule: models.MatchRule{BodyContains: strp("Hi")}},
		{pattern: "other/+", eventName: "t", rule: models.MatchRule{None: true}},
	}
	got := matchingEntries(entries, "test/peter", "Hi Peter")
	assert.Len(t, got, 1)
	assert.Equal(t, "s", got[0].eventName)

	assert.Len(t, matchingEntries(entries, "test/peter", "bye"), 0)
	assert.Len(t, matchingEntries(entries, "other/anything", "whatever"), 1)
}

func TestResolveIDDefaultsToFirstConfigured(t *testing.T) {
	p := New(nil)
	p.clients["default"] = nil
	p.defaultID = "default"
	p.clients["secondary"] = nil

	assert.Equal(t, "default", p.resolveID(""))
	assert.Equal(t, "secondary", p.resolveID("secondary"))
}

func TestSubscribeUnknownPoolErrors(t *testing.T) {
	p := New(nil)
	err := p.Subscribe("ev", "nope", "test/+", models.MatchRule{})
	assert.Error(t, err)
}

func TestSubscribeUnsubscribeRoundTrip(t *testing.T) {
	p := New(nil)
	p.clients["default"] = nil
	p.defaultID = "default"

	require := func(ok bool) {
		if !ok {
			t.Fatal("expected condition to hold")
		}
	}
	require(p.Subscribe("s", "", "test/+", models.MatchRule{}) == nil)
	assert.Len(t, p.subsByPool["default"], 1)

	require(p.Unsubscribe("s", "", "test/+") == nil)
	assert.Len(t, p.subsByPool["default"], 0)
}
