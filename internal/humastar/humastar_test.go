package humastar

import (
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalsInputMustParse(t *testing.T) {
	in := &SignalsInput{RawBody: []byte(`{"query":"lahore","ctrl":true,"touchy":412.5,"n":3}`)}
	signals, err := in.MustParse()
	require.NoError(t, err)
	assert.Equal(t, "lahore", signals.String("query"))
	assert.True(t, signals.Bool("ctrl"))
	assert.Equal(t, 412.5, signals.Float("touchy"))

	// Wrong types and missing keys read as zero values.
	assert.Equal(t, "", signals.String("n"))
	assert.False(t, signals.Bool("query"))
	assert.Zero(t, signals.Float("missing"))

	empty, err := (&SignalsInput{}).MustParse()
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = (&SignalsInput{RawBody: []byte(`{"query":`)}).MustParse()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.GetStatus())
}
