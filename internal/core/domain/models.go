package domain

import "time"

// PostKind classifies how a post relates to other posts.
type PostKind string

const (
	KindOriginal PostKind = "original"
	KindReshare  PostKind = "retweet"
	KindReply    PostKind = "reply"
	KindQuote    PostKind = "quote"
)

// Metrics holds the public engagement counters of a post.
type Metrics struct {
	Likes    int `json:"likes"`
	Replies  int `json:"replies"`
	Reshares int `json:"retweets"`
	Quotes   int `json:"quotes"`
}

// Engagement is the sum of all public counters.
func (m Metrics) Engagement() int {
	return m.Likes + m.Replies + m.Reshares + m.Quotes
}

// Author identifies who wrote a timeline post. Only populated for
// timeline items; archive rows belong to the authenticated user.
type Author struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Post is one item of social content, immutable once constructed
// from platform data.
type Post struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Text           string    `json:"text"`
	Kind           PostKind  `json:"type"`
	Metrics        Metrics   `json:"metrics"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Author         *Author   `json:"author,omitempty"`
	QuotedText     string    `json:"quoted_text,omitempty"`
}

// Reference types reported by the platform on a raw item.
const (
	RefReshared  = "retweeted"
	RefRepliedTo = "replied_to"
	RefQuoted    = "quoted"
)

// Reference points at another post that a raw item reshares,
// replies to, or quotes.
type Reference struct {
	Type string
	ID   string
}

// RawItem is one unclassified item as the platform returns it.
type RawItem struct {
	ID             string
	Text           string
	CreatedAt      time.Time
	Metrics        Metrics
	References     []Reference
	AuthorID       string
	ConversationID string
}

// Page is one page of a paginated user-posts fetch. An empty
// NextToken means the platform has no more pages.
type Page struct {
	Items     []RawItem
	NextToken string
}

// TimelineBatch is a home-timeline fetch together with the
// side-channel lookup tables the platform returns alongside it.
type TimelineBatch struct {
	Items []RawItem
	// Users maps author id to profile, Referenced maps post id to
	// the text of a reshared/quoted target.
	Users      map[string]Author
	Referenced map[string]string
}

// Account is the authenticated user.
type Account struct {
	ID         string
	Username   string
	TweetCount int
}

// GenerationMode selects what kind of text the brain should produce.
type GenerationMode string

const (
	ModeReply         GenerationMode = "reply"
	ModeOriginalShort GenerationMode = "original-short"
	ModeOriginalLong  GenerationMode = "original-long"
)

// GenerationRequest is one unit of work for the brain.
type GenerationRequest struct {
	// Context is the source post text in reply mode, or the topic
	// string in original modes.
	Context string
	Mode    GenerationMode
	// Feedback carries the free-text steering from the previous
	// rejected attempt, empty on the first attempt.
	Feedback string
	// Exemplars are past-post texts used as few-shot grounding;
	// Accepted are previously approved outputs, preferred over raw
	// exemplars.
	Exemplars []string
	Accepted  []string
}

// GenerationResult is the parsed output of one brain invocation.
// If ShouldRespond is false, Text is empty and nothing may be
// published without a human override.
type GenerationResult struct {
	ShouldRespond bool
	Text          string
	// Raw keeps the unparsed model output for diagnostics.
	Raw string
}

// AttemptStatus is the terminal outcome of one approval cycle.
type AttemptStatus string

const (
	StatusAccepted     AttemptStatus = "accepted"
	StatusRejected     AttemptStatus = "rejected"
	StatusNoModelReply AttemptStatus = "no_model_reply"
)

// AttemptRecord is one row in the append-only outcome log. Written
// exactly once per terminal decision, never mutated.
type AttemptRecord struct {
	Timestamp     time.Time     `json:"timestamp"`
	SourceText    string        `json:"source_text"`
	GeneratedText string        `json:"generated_text"`
	UserFeedback  string        `json:"user_feedback,omitempty"`
	FinalText     string        `json:"final_text"`
	Status        AttemptStatus `json:"status"`
}
