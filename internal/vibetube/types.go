package vibetube

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Categories accepted by /getvideos in addition to "random".
var Categories = []string{"music", "movies", "gaming", "anime", "education", "entertainment", "tech", "news", "vlogs"}

const CategoryRandom = "random"

func IsCategory(name string) bool {
	if name == CategoryRandom {
		return true
	}
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

type User struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	ProfileImage       string `json:"profile_image"`
	ChannelDescription string `json:"channel_description"`
}

type Owner struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

// Video is the subset of video fields the client renders.
type Video struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Visibility   string    `json:"visibility"`
	Category     string    `json:"category"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	VideoURL     string    `json:"video_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Views        int       `json:"views"`
	CreatedAt    Timestamp `json:"created_at"`
	Duration     string    `json:"duration"`
	Owner        *Owner    `json:"owner"`
}

func (v Video) Key() string { return strconv.FormatInt(v.ID, 10) }

// ChannelID is the id of the uploading user, which doubles as the channel id.
func (v Video) ChannelID() int64 {
	if v.Owner != nil && v.Owner.ID != 0 {
		return v.Owner.ID
	}
	return v.UserID
}

func (v Video) ChannelName() string {
	if v.Owner != nil && v.Owner.Username != "" {
		return v.Owner.Username
	}
	return v.Username
}

type CommentUser struct {
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

type Comment struct {
	ID        int64        `json:"id"`
	VideoID   int64        `json:"video_id"`
	UserID    int64        `json:"user_id"`
	Username  string       `json:"username"`
	Text      string       `json:"text"`
	CreatedAt Timestamp    `json:"created_at"`
	User      *CommentUser `json:"user"`
}

func (c Comment) Author() string {
	if c.User != nil && c.User.Username != "" {
		return c.User.Username
	}
	if c.Username != "" {
		return c.Username
	}
	return "unknown"
}

type LikeStatus struct {
	Liked bool
	Likes int
}

type SubscriptionStatus struct {
	Subscribed    bool
	Subscribers   int
	OwnerWatching bool
}

// Registration is the sign-up payload. Email is optional on the server.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Timestamp accepts RFC 3339 and the backend's zone-less ISO form.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// strictBool decodes a JSON boolean or the legacy "true"/"false" strings.
// Anything else is a decode error rather than a silent false.
type strictBool bool

func (b *strictBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = strictBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected boolean, got %s", string(data))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		*b = true
	case "false":
		*b = false
	default:
		return fmt.Errorf("expected boolean, got %q", s)
	}
	return nil
}

type likeStatusPayload struct {
	Liked *strictBool `json:"liked"`
	Likes *int        `json:"likes"`
}

func (p likeStatusPayload) status() (LikeStatus, error) {
	if p.Liked == nil || p.Likes == nil {
		return LikeStatus{}, fmt.Errorf("like status missing liked/likes")
	}
	return LikeStatus{Liked: bool(*p.Liked), Likes: *p.Likes}, nil
}

type subscriptionPayload struct {
	Subscribed    *strictBool `json:"subscribed"`
	Subscribers   *int        `json:"subscribers"`
	OwnerWatching *strictBool `json:"owner_watching"`
}

func (p subscriptionPayload) status() (SubscriptionStatus, error) {
	if p.Subscribed == nil || p.Subscribers == nil {
		return SubscriptionStatus{}, fmt.Errorf("subscription status missing subscribed/subscribers")
	}
	st := SubscriptionStatus{Subscribed: bool(*p.Subscribed), Subscribers: *p.Subscribers}
	if p.OwnerWatching != nil {
		st.OwnerWatching = bool(*p.OwnerWatching)
	}
	return st, nil
}
