// Public domain.

package occerr_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viscoinv/occam/internal/occerr"
)

func ExampleNew() {
	err := occerr.Consistency("occsolver.AssembleJacobian", "epochs %v != %v", []int{0, 10}, []int{0, 30})
	fmt.Println(err)
	// Output:
	// occsolver.AssembleJacobian: epochs [0 10] != [0 30]
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := occerr.Range("epochal.lookup", "epoch %d", 40)
	wrapped := fmt.Errorf("trial visM: %w", err)
	assert.ErrorIs(t, wrapped, occerr.ErrRange)
	assert.NotErrorIs(t, wrapped, occerr.ErrConsistency)
	assert.Equal(t, occerr.ErrRange, occerr.KindOf(wrapped))

	var oe *occerr.Error
	require.ErrorAs(t, wrapped, &oe)
	assert.Equal(t, "epochal.lookup", oe.Op)
}

func TestWrapKeepsCause(t *testing.T) {
	assert.NoError(t, occerr.Wrap(occerr.ErrConfiguration, "x", nil))
	err := occerr.Wrap(occerr.ErrConfiguration, "sites.ReadFile", io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, occerr.ErrConfiguration)
	assert.Equal(t, "sites.ReadFile: unexpected EOF", err.Error())
	assert.Nil(t, occerr.KindOf(errors.New("plain")))
}
