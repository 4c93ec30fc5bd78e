package twitter

import (
	"time"

	"github.com/blockapps/kieren-clone/internal/core/domain"
)

// apiMetrics mirrors the public_metrics object of the v2 API.
type apiMetrics struct {
	LikeCount    int `json:"like_count"`
	ReplyCount   int `json:"reply_count"`
	RetweetCount int `json:"retweet_count"`
	QuoteCount   int `json:"quote_count"`
}

// apiTweet mirrors one tweet object of the v2 API.
type apiTweet struct {
	ID               string     `json:"id"`
	Text             string     `json:"text"`
	CreatedAt        time.Time  `json:"created_at"`
	ConversationID   string     `json:"conversation_id"`
	AuthorID         string     `json:"author_id"`
	PublicMetrics    apiMetrics `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

// apiUser mirrors one user object of the v2 API.
type apiUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	PublicMetrics struct {
		TweetCount int `json:"tweet_count"`
	} `json:"public_metrics"`
}

type apiMeta struct {
	NextToken   string `json:"next_token"`
	ResultCount int    `json:"result_count"`
}

type apiIncludes struct {
	Users  []apiUser  `json:"users"`
	Tweets []apiTweet `json:"tweets"`
}

func (t apiTweet) toRawItem() domain.RawItem {
	item := domain.RawItem{
		ID:        t.ID,
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
		Metrics: domain.Metrics{
			Likes:    t.PublicMetrics.LikeCount,
			Replies:  t.PublicMetrics.ReplyCount,
			Reshares: t.PublicMetrics.RetweetCount,
			Quotes:   t.PublicMetrics.QuoteCount,
		},
		AuthorID:       t.AuthorID,
		ConversationID: t.ConversationID,
	}
	for _, ref := range t.ReferencedTweets {
		item.References = append(item.References, domain.Reference{Type: ref.Type, ID: ref.ID})
	}
	return item
}
