package wordpress

// Rendered wraps WordPress's rendered-field envelope.
type Rendered struct {
	Rendered string `json:"rendered"`
}

// Post is the wire shape of a WordPress REST post with `_embed`.
type Post struct {
	ID            int64     `json:"id"`
	Date          string    `json:"date"`
	Modified      string    `json:"modified"`
	Status        string    `json:"status"`
	Link          string    `json:"link"`
	Title         Rendered  `json:"title"`
	Content       Rendered  `json:"content"`
	Excerpt       Rendered  `json:"excerpt"`
	Author        int64     `json:"author"`
	Categories    []int64   `json:"categories"`
	Tags          []int64   `json:"tags"`
	FeaturedMedia int64     `json:"featured_media"`
	Embedded      *Embedded `json:"_embedded,omitempty"`
}

type Embedded struct {
	Author []EmbeddedAuthor `json:"author"`
}

type EmbeddedAuthor struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Link        string `json:"link"`
}
