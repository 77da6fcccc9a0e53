package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorsUnwrapThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading: %w", &NotFoundError{Resource: "task", ID: "abc"})
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "task not found: abc", nf.Error())
	require.True(t, IsNotFound(err))
	require.False(t, IsNotFound(&ForbiddenError{}))
	require.False(t, IsNotFound(nil))
}

func TestForbiddenErrorMessage(t *testing.T) {
	require.Equal(t, "forbidden", (&ForbiddenError{}).Error())
	require.Equal(t, "not yours", (&ForbiddenError{Message: "not yours"}).Error())
}

func TestSelectUnknownStore(t *testing.T) {
	_, err := Select("does-not-exist")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown store")
}
