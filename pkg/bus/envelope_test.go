package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControlChannel_DefaultsPrefix(t *testing.T) {
	assert.Equal(t, "eventharness_rule_collection", ControlChannel("", "collection"))
}

func TestControlChannel_CustomPrefix(t *testing.T) {
	assert.Equal(t, "myorg_rule_collection", ControlChannel("myorg", "collection"))
}

func TestControlChannel_SanitizesRuleName(t *testing.T) {
	assert.Equal(t, "eventharness_rule_my_rule_1", ControlChannel("", "my-rule-1"))
}
