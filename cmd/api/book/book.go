package book

// Book is a single catalogue entry, keyed by its ISBN.
type Book struct {
	ISBN      string
	AmazonURL string
	Author    string
	Language  string
	Pages     int
	Publisher string
	Title     string
	Year      int
}

/* Names of the book fields as they travel on the wire and in the books table, in declaration order. */
var FieldNames = []string{"isbn", "amazon_url", "author", "language", "pages", "publisher", "title", "year"}

/* Sparse set of field updates. Only the non-nil fields are written by Apply. */
type Patch struct {
	ISBN      *string
	AmazonURL *string
	Author    *string
	Language  *string
	Pages     *int
	Publisher *string
	Title     *string
	Year      *int
}

/* Overwrites the fields of b that are present in the patch and leaves the rest untouched. */
func (p Patch) Apply(b *Book) {
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
	if p.AmazonURL != nil {
		b.AmazonURL = *p.AmazonURL
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Language != nil {
		b.Language = *p.Language
	}
	if p.Pages != nil {
		b.Pages = *p.Pages
	}
	if p.Publisher != nil {
		b.Publisher = *p.Publisher
	}
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Year != nil {
		b.Year = *p.Year
	}
}

/* Equality filter for listing books. A nil field does not narrow the result. */
type Filter struct {
	ISBN      *string
	AmazonURL *string
	Author    *string
	Language  *string
	Pages     *int
	Publisher *string
	Title     *string
	Year      *int
}

/* Columns returns the set filter fields keyed by column name. */
func (f Filter) Columns() map[string]any {
	cols := map[string]any{}
	if f.ISBN != nil {
		cols["isbn"] = *f.ISBN
	}
	if f.AmazonURL != nil {
		cols["amazon_url"] = *f.AmazonURL
	}
	if f.Author != nil {
		cols["author"] = *f.Author
	}
	if f.Language != nil {
		cols["language"] = *f.Language
	}
	if f.Pages != nil {
		cols["pages"] = *f.Pages
	}
	if f.Publisher != nil {
		cols["publisher"] = *f.Publisher
	}
	if f.Title != nil {
		cols["title"] = *f.Title
	}
	if f.Year != nil {
		cols["year"] = *f.Year
	}
	return cols
}

/* Reports whether b satisfies every field set on the filter. */
func (f Filter) Matches(b Book) bool {
	switch {
	case f.ISBN != nil && *f.ISBN != b.ISBN:
		return false
	case f.AmazonURL != nil && *f.AmazonURL != b.AmazonURL:
		return false
	case f.Author != nil && *f.Author != b.Author:
		return false
	case f.Language != nil && *f.Language != b.Language:
		return false
	case f.Pages != nil && *f.Pages != b.Pages:
		return false
	case f.Publisher != nil && *f.Publisher != b.Publisher:
		return false
	case f.Title != nil && *f.Title != b.Title:
		return false
	case f.Year != nil && *f.Year != b.Year:
		return false
	}
	return true
}
