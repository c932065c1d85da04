package services

import (
	"fmt"
	"sort"
)

// ConversationKey returns the canonical key for the conversation between
// two users. The ids are sorted so both directions map to the same key.
func ConversationKey(userID1, userID2 string) string {
	userIDs := []string{userID1, userID2}
	sort.Strings(userIDs)
	return fmt.Sprintf("%s_%s", userIDs[0], userIDs[1])
}
