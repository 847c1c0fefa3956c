package domain

import "time"

// PostStatus описывает этап жизненного цикла поста.
type PostStatus string

const (
	PostStatusInbox     PostStatus = "inbox"
	PostStatusGenerated PostStatus = "generated"
	PostStatusReview    PostStatus = "review"
	PostStatusApproved  PostStatus = "approved"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusMeasured  PostStatus = "measured"
	PostStatusRejected  PostStatus = "rejected"
)

// AllStatuses перечисляет статусы в порядке воркфлоу.
var AllStatuses = []PostStatus{
	PostStatusInbox,
	PostStatusGenerated,
	PostStatusReview,
	PostStatusApproved,
	PostStatusScheduled,
	PostStatusPublished,
	PostStatusMeasured,
	PostStatusRejected,
}

// Channel описывает площадку публикации.
type Channel string

const (
	ChannelIGFeed    Channel = "ig-feed"
	ChannelIGStories Channel = "ig-stories"
	ChannelReels     Channel = "reels"
	ChannelLinkedIn  Channel = "linkedin"
	ChannelTelegram  Channel = "telegram"
	ChannelYouTube   Channel = "youtube"
)

// AssetFormat описывает креативный формат материала.
type AssetFormat string

const (
	FormatSingleImage AssetFormat = "single_image"
	FormatCarousel    AssetFormat = "carousel"
	FormatReel        AssetFormat = "reel"
	FormatLongVideo   AssetFormat = "long_video"
	FormatStory       AssetFormat = "story"
	FormatText        AssetFormat = "text"
)

// PostWeight описывает производственную стоимость поста.
type PostWeight string

const (
	WeightHeavy PostWeight = "heavy"
	WeightLight PostWeight = "light"
)

// RejectReason различает прямое отклонение и каскад от корневого поста.
type RejectReason string

const (
	RejectReasonManual  RejectReason = "manual"
	RejectReasonCascade RejectReason = "core_rejected"
)

// Asset описывает исходный материал, из которого сгенерированы посты.
type Asset struct {
	ID      string      `json:"id"`
	Kind    string      `json:"kind"`
	Format  AssetFormat `json:"format"`
	Quality *float64    `json:"quality,omitempty"`
}

// Post представляет единицу публикуемого контента.
type Post struct {
	ID            string
	AssetID       string
	IsCore        bool
	ParentPostID  string
	DerivativeIDs []string
	Channel       Channel
	Format        AssetFormat
	Status        PostStatus
	Weight        PostWeight
	Score         *int
	PillarID      string
	ScheduledDate *time.Time
	RejectReason  RejectReason
	PayloadJSON   []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Pillar описывает редакционную рубрику.
type Pillar struct {
	ID          string
	Name        string
	Description string
}

// EditorialDNA содержит стратегию студии: набор рубрик.
type EditorialDNA struct {
	Pillars []Pillar
}

// PillarByID возвращает рубрику по идентификатору.
func (d EditorialDNA) PillarByID(id string) (Pillar, bool) {
	for _, p := range d.Pillars {
		if p.ID == id {
			return p, true
		}
	}
	return Pillar{}, false
}

// WeeklySlotTemplate описывает повторяющееся окно публикации.
type WeeklySlotTemplate struct {
	DayOfWeek time.Weekday
	Label     string
	Channels  []Channel
}

// Permits сообщает, разрешает ли слот указанную площадку.
func (t WeeklySlotTemplate) Permits(channel Channel) bool {
	for _, ch := range t.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// ConflictKind описывает тип проблемы календаря.
type ConflictKind string

const (
	ConflictChannelCollision ConflictKind = "channel_collision"
	ConflictWeightOverload   ConflictKind = "weight_overload"
	ConflictPillarImbalance  ConflictKind = "pillar_imbalance"
)

// ConflictReport описывает проблему календаря. Отчёт рекомендательный и нигде не хранится.
type ConflictReport struct {
	Kind    ConflictKind
	Date    time.Time
	Message string
}

// Assignment — инструкция планировщика: пост встаёт на дату.
type Assignment struct {
	PostID        string     `json:"post_id"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	Status        PostStatus `json:"status"`
}

// ScheduleResult содержит итог прогона автопланировщика.
type ScheduleResult struct {
	Assignments []Assignment
	Unplaced    []Post
	Conflicts   []ConflictReport
	RunAt       time.Time
}
