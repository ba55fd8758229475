// Package blog は保護者向けブログ記事を提供する。
// 記事はバイナリに埋め込んだYAMLから起動時に読み込み、読み取り専用で扱う。
package blog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snoozies/dreamyhaven/internal/catalog"
	"github.com/snoozies/dreamyhaven/internal/model"
)

//go:embed posts.yaml
var embeddedPosts []byte

// postRecord はYAML上の記事レコード。
type postRecord struct {
	Slug     string `yaml:"slug"`
	Title    string `yaml:"title"`
	Excerpt  string `yaml:"excerpt"`
	Body     string `yaml:"body"`
	Category string `yaml:"category"`
	Author   string `yaml:"author"`
	Date     string `yaml:"date"`
	ReadTime string `yaml:"read_time"`
	Featured bool   `yaml:"featured"`
}

// Catalog は記事一覧を保持する。
type Catalog struct {
	posts []model.BlogPost
}

// Load は埋め込みの記事データからCatalogを生成する。
func Load() (*Catalog, error) {
	return Parse(embeddedPosts)
}

// Parse はYAMLの記事データからCatalogを生成する。記事は日付の降順に並べる。
func Parse(data []byte) (*Catalog, error) {
	var records []postRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("ブログ記事の読み込みに失敗しました: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	posts := make([]model.BlogPost, 0, len(records))
	for i, r := range records {
		if r.Slug == "" || r.Title == "" {
			return nil, fmt.Errorf("ブログ記事%d件目にslugまたはtitleがありません", i+1)
		}
		if _, ok := seen[r.Slug]; ok {
			return nil, fmt.Errorf("ブログ記事のslugが重複しています: %s", r.Slug)
		}
		seen[r.Slug] = struct{}{}

		date, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return nil, fmt.Errorf("ブログ記事 %s の日付が不正です: %w", r.Slug, err)
		}
		posts = append(posts, model.BlogPost{
			Slug:     r.Slug,
			Title:    r.Title,
			Excerpt:  r.Excerpt,
			Body:     strings.TrimSpace(r.Body),
			Category: r.Category,
			Author:   r.Author,
			Date:     date,
			ReadTime: r.ReadTime,
			Featured: r.Featured,
		})
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Date.After(posts[j].Date)
	})
	return &Catalog{posts: posts}, nil
}

// List は条件に一致する記事を返す。
func (c *Catalog) List(criteria catalog.Criteria) []model.BlogPost {
	return catalog.Filter(c.posts, criteria)
}

// All は全記事を返す。
func (c *Catalog) All() []model.BlogPost {
	return append([]model.BlogPost(nil), c.posts...)
}

// Featured は注目記事を返す。注目記事がない場合はnilを返す。
func (c *Catalog) Featured() *model.BlogPost {
	for i := range c.posts {
		if c.posts[i].Featured {
			p := c.posts[i]
			return &p
		}
	}
	return nil
}

// FindBySlug はslugに一致する記事を返す。見つからない場合はnilを返す。
func (c *Catalog) FindBySlug(slug string) *model.BlogPost {
	for i := range c.posts {
		if c.posts[i].Slug == slug {
			p := c.posts[i]
			return &p
		}
	}
	return nil
}

// Categories はカテゴリ選択肢を返す。先頭は番兵値。
func (c *Catalog) Categories() []string {
	return catalog.CategoryOptions(c.posts)
}
