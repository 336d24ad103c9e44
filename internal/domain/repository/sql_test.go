package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsRowID(t *testing.T) {
	assert.True(t, isRowID(uuid.NewString()))
	assert.True(t, isRowID("6F9619FF-8B86-D011-B42D-00C04FC964FF"))

	for _, id := range []string{"", "abc", "1", "6f9619ff-8b86-d011-b42d", "' OR 1=1 --"} {
		assert.False(t, isRowID(id), id)
	}
}
