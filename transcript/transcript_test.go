package transcript

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendKeepsOrderAndAssignsIDs(t *testing.T) {
	tr := New()

	u := tr.AppendUser("Hello")
	a := tr.AppendAssistant("Hi")
	f := tr.AppendFailure("Sorry")

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{u.ID, a.ID, f.ID}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	assert.NotEqual(t, u.ID, a.ID)

	assert.Equal(t, SenderUser, msgs[0].Sender)
	assert.Equal(t, StatusOK, msgs[0].Status)
	assert.True(t, msgs[1].IsAssistant())
	assert.False(t, msgs[1].Failed())
	assert.True(t, msgs[2].Failed())
	assert.False(t, msgs[0].Timestamp.IsZero())
	assert.False(t, msgs[1].Timestamp.Before(msgs[0].Timestamp))
}

func TestMessagesReturnsCopy(t *testing.T) {
	tr := New()
	tr.AppendUser("one")

	msgs := tr.Messages()
	msgs[0].Text = "changed"

	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, "one", last.Text)
}

func TestLastOnEmpty(t *testing.T) {
	_, ok := New().Last()
	assert.False(t, ok)
}

func TestOnAppendHookSeesEveryMessage(t *testing.T) {
	tr := New()
	var seen []string
	tr.OnAppend(func(m Message) { seen = append(seen, m.Text) })
	tr.OnAppend(nil)

	tr.AppendUser("a")
	tr.AppendAssistant("b")

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AppendAssistant("x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Len())
}
