package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsift/internal/domain"
	"docsift/internal/port"
	"docsift/mocks"
)

func TestInvokeDecodesValidResponse(t *testing.T) {
	completer := new(mocks.MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).
		Return(`{"result":[{"name":"total","content":"42.00","justification":"","citation":"","references":["d1:1:p2"]}]}`, nil).
		Once()

	inv := NewInvoker(completer, NewRegistry(), 2)
	out, err := inv.Invoke(context.Background(), port.CompletionInput{Model: "gpt-4o"}, SchemaDefault, -1)
	require.NoError(t, err)

	res, ok := out.(*domain.LLMFieldsResult)
	require.True(t, ok)
	require.Len(t, res.Result, 1)
	assert.Equal(t, "total", res.Result[0].Name)
	completer.AssertExpectations(t)
}

func TestInvokeRetriesValidationFailures(t *testing.T) {
	completer := new(mocks.MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).
		Return(`not json`, nil).
		Times(3)

	inv := NewInvoker(completer, NewRegistry(), 2)
	_, err := inv.Invoke(context.Background(), port.CompletionInput{}, SchemaDefault, -1)
	require.Error(t, err)

	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
	completer.AssertExpectations(t)
}

func TestInvokeTransportErrorPassesThrough(t *testing.T) {
	transportErr := errors.New("connection reset")
	completer := new(mocks.MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).
		Return("", transportErr).
		Once()

	inv := NewInvoker(completer, NewRegistry(), 5)
	_, err := inv.Invoke(context.Background(), port.CompletionInput{}, SchemaDefault, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	completer.AssertNumberOfCalls(t, "Complete", 1)
}

func TestInvokeUnknownSchema(t *testing.T) {
	inv := NewInvoker(new(mocks.MockCompleter), NewRegistry(), 0)
	_, err := inv.Invoke(context.Background(), port.CompletionInput{}, "nope", -1)
	assert.ErrorIs(t, err, domain.ErrSchemaNotFound)
}

func TestInvokeExplicitRetryCountOverridesDefault(t *testing.T) {
	completer := new(mocks.MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).
		Return(`{}`, nil).
		Once()

	inv := NewInvoker(completer, NewRegistry(), 5)
	_, err := inv.Invoke(context.Background(), port.CompletionInput{}, SchemaDefault, 0)
	require.Error(t, err)
	completer.AssertNumberOfCalls(t, "Complete", 1)
}
