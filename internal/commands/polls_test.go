package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePollQuestion(t *testing.T) {
	assert.NoError(t, validatePollQuestion("What should we stream next?"))
	assert.Error(t, validatePollQuestion(""))
	assert.Error(t, validatePollQuestion("   "))
	assert.Error(t, validatePollQuestion("Hi?"))
	assert.Error(t, validatePollQuestion(strings.Repeat("q", 501)))
}

func TestValidatePollOptions(t *testing.T) {
	assert.NoError(t, validatePollOptions([]string{"Gaming", "Music"}))

	assert.Error(t, validatePollOptions(nil))
	assert.Error(t, validatePollOptions([]string{"Only one"}))
	assert.Error(t, validatePollOptions([]string{
		"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11",
	}))
	assert.Error(t, validatePollOptions([]string{"Gaming", "  "}))
	assert.Error(t, validatePollOptions([]string{"Gaming", strings.Repeat("x", 201)}))

	// Duplicates compare case-insensitively after trimming.
	assert.Error(t, validatePollOptions([]string{"Gaming", " gaming "}))
}
