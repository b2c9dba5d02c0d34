package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrentAgent_MostRecentUnmatchedStart(t *testing.T) {
	events := []Event{
		AgentStart("research", "tx1", 0, false),
		AgentComplete("research", "tx1", 1, false),
		AgentStart("analyst", "tx1", 2, false),
	}
	require.Equal(t, "analyst", CurrentAgent(events))
}

func TestCurrentAgent_NoneRunning(t *testing.T) {
	events := []Event{
		AgentStart("research", "tx1", 0, false),
		AgentComplete("research", "tx1", 1, false),
	}
	require.Equal(t, "", CurrentAgent(events))
}

func TestCurrentTasks_OnlyUnclosedTasksSurvive(t *testing.T) {
	events := []Event{
		TaskStart("research", "fetch_price", "AAPL", "tx1", 0, true),
		TaskStart("research", "fetch_news", "AAPL", "tx1", 1, true),
		TaskComplete("research", "fetch_price", "AAPL", "tx1", 2, true),
	}
	tasks := CurrentTasks(events)
	require.Equal(t, []string{"fetch_news"}, tasks["research"])
}

func TestTaskStart_MessageFormat(t *testing.T) {
	e := TaskStart("Research Agent", "fetch_price", "AAPL", "tx1", 0, true)
	require.Equal(t, "Research Agent: Starting fetch_price for AAPL...", e.Message)
}
