package models

type NotificationType string

const (
	NotificationFollow NotificationType = "follow"
	NotificationLike   NotificationType = "like"
)

type Notification struct {
	ID   string           `json:"_id"`
	Type NotificationType `json:"type"`
	From struct {
		Username   string `json:"username"`
		ProfileImg string `json:"profileImg,omitempty"`
	} `json:"from"`
}

// Describe renders the notification line, e.g. "@alice followed you".
func (n Notification) Describe() string {
	action := "liked your post"
	if n.Type == NotificationFollow {
		action = "followed you"
	}
	return "@" + n.From.Username + " " + action
}
