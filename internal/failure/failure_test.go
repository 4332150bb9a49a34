package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfWrappedError(t *testing.T) {
	req := require.New(t)
	err := fmt.Errorf("processing: %w", Store("insert message", errors.New("disk full")))

	req.Equal(KindStore, KindOf(err))
	req.Equal(KindNone, KindOf(errors.New("plain")))
	req.Contains(err.Error(), "insert message: disk full")
}

func TestNotFoundSurvivesTagging(t *testing.T) {
	req := require.New(t)
	err := Store("find conversation", ErrNotFound)

	req.True(IsNotFound(err))
	req.False(IsNotFound(Store("find conversation", errors.New("timeout"))))
}

func TestValidationFormatsMessage(t *testing.T) {
	req := require.New(t)
	err := Validation("decode envelope", "missing %s", "remoteJid")

	req.Equal(KindValidation, KindOf(err))
	req.Equal("decode envelope: missing remoteJid", err.Error())
}
