package kmeta

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, CheckVersion(Version))
	assert.NoError(t, CheckVersion(OldestCompatible))

	err := CheckVersion(Version + 1)
	assert.Error(t, err)
	assert.True(t, IsIncompatible(err))
	assert.Contains(t, err.Error(), "newer than this build")

	err = CheckVersion(OldestCompatible - 1)
	assert.True(t, IsIncompatible(err))
	assert.Contains(t, err.Error(), "too old")
}

func TestIncompatibleWrapped(t *testing.T) {
	err := fmt.Errorf("decoding table: %w", Incompatiblef("meta can not be None"))

	var inc *Incompatible
	assert.True(t, errors.As(err, &inc))
	assert.Equal(t, "meta can not be None", inc.Reason)
	assert.False(t, IsIncompatible(errors.New("other")))
}

func TestRequire(t *testing.T) {
	type ident struct{ id int }

	v, err := Require(&ident{id: 7}, "TableInfo.ident")
	assert.NoError(t, err)
	assert.Equal(t, 7, v.id)

	_, err = Require[ident](nil, "TableInfo.ident")
	assert.True(t, IsIncompatible(err))
	assert.Equal(t, "incompatible metadata: TableInfo.ident can not be None", err.Error())
}
