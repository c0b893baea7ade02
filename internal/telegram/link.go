package telegram

import (
	"strconv"
	"strings"
)

// MessageLink returns a t.me deep link to a chat message. Public chats link
// through their username; supergroups and channels through their numeric ID
// without the -100 prefix. Other chats have no link.
func MessageLink(chatID int64, username string, messageID int64) string {
	id := strconv.FormatInt(messageID, 10)
	if username = strings.TrimPrefix(username, "@"); username != "" {
		return "https://t.me/" + username + "/" + id
	}
	if s := strconv.FormatInt(chatID, 10); strings.HasPrefix(s, "-100") {
		return "https://t.me/c/" + s[4:] + "/" + id
	}
	return ""
}
