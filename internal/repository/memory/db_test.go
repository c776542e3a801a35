package memory

import (
	"testing"

	"github.com/jwalitptl/referral-api/internal/repository/repotest"
)

func TestStore(t *testing.T) {
	repotest.Run(t, New().Store())
}
