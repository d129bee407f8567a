// Package taxonomy holds the two-level category tree files are classified
// into. The tree is load-once configuration: read from YAML at startup or
// taken from the built-in default, never mutated afterwards.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nordlicht-labs/corpusgraph/pkg/ai"
)

// Unclassified is the category pair recorded when classification fails
// outright.
const Unclassified = "未分类"

// Subcategory is a second-level category under one first-level category.
type Subcategory struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Category is a first-level category with its ordered subcategories.
type Category struct {
	Name          string        `yaml:"name"`
	Description   string        `yaml:"description,omitempty"`
	Subcategories []Subcategory `yaml:"subcategories"`
}

// Taxonomy is the ordered two-level tree. Order matters: normalization
// falls back to the first entry, and prompts enumerate pairs in tree order.
type Taxonomy struct {
	Categories []Category `yaml:"categories"`
}

// Default returns the built-in tree used when no taxonomy file is
// configured.
func Default() *Taxonomy {
	return &Taxonomy{Categories: []Category{
		{
			Name:        "产品资料",
			Description: "产品本身的介绍、图片和规格类资料",
			Subcategories: []Subcategory{
				{Name: "产品图片", Description: "产品照片、渲染图、外观图"},
				{Name: "产品手册", Description: "产品说明书、使用手册、宣传册"},
				{Name: "规格参数", Description: "参数表、配置清单、技术规格"},
			},
		},
		{
			Name:        "市场营销",
			Description: "面向市场和客户的宣传与活动资料",
			Subcategories: []Subcategory{
				{Name: "宣传物料", Description: "海报、展板、宣传图文"},
				{Name: "活动方案", Description: "活动策划、推广方案"},
			},
		},
		{
			Name:        "技术文档",
			Description: "研发与工程相关文档",
			Subcategories: []Subcategory{
				{Name: "设计文档", Description: "方案设计、架构设计"},
				{Name: "测试报告", Description: "测试记录、验证报告"},
				{Name: "接口文档", Description: "API 说明、协议文档"},
			},
		},
		{
			Name:        "运营数据",
			Description: "经营与运营过程产生的数据表格",
			Subcategories: []Subcategory{
				{Name: "销售报表", Description: "销售统计、业绩报表"},
				{Name: "库存数据", Description: "库存清单、出入库记录"},
			},
		},
		{
			Name:        "行政办公",
			Description: "日常行政与办公文件",
			Subcategories: []Subcategory{
				{Name: "合同协议", Description: "合同、协议、法务文件"},
				{Name: "会议纪要", Description: "会议记录、纪要、通知"},
			},
		},
	}}
}

// Load reads a taxonomy from a YAML file. An empty path returns the
// built-in default.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}

	var t Taxonomy
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}

	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy %s has no categories", path)
	}
	for _, c := range t.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("taxonomy %s has a category without a name", path)
		}
		if len(c.Subcategories) == 0 {
			return nil, fmt.Errorf("taxonomy %s: category %s has no subcategories", path, c.Name)
		}
		for _, s := range c.Subcategories {
			if s.Name == "" {
				return nil, fmt.Errorf("taxonomy %s: category %s has a subcategory without a name", path, c.Name)
			}
		}
	}

	return &t, nil
}

// Contains reports whether (l1, l2) is an exact member of the tree.
func (t *Taxonomy) Contains(l1, l2 string) bool {
	for _, c := range t.Categories {
		if c.Name != l1 {
			continue
		}
		for _, s := range c.Subcategories {
			if s.Name == l2 {
				return true
			}
		}
	}
	return false
}

// Pairs enumerates all (L1, L2) pairs in tree order, for classification
// prompts.
func (t *Taxonomy) Pairs() []ai.CategoryPair {
	var pairs []ai.CategoryPair
	for _, c := range t.Categories {
		for _, s := range c.Subcategories {
			pairs = append(pairs, ai.CategoryPair{L1: c.Name, L2: s.Name})
		}
	}
	return pairs
}

// Normalize maps a model-returned pair onto a valid tree member. Exact
// members pass through. Otherwise: an exact L1 match substitutes that
// category's first L2, then substring containment on both names is tried,
// and finally the first entry of the tree is used.
func (t *Taxonomy) Normalize(l1, l2 string) (string, string) {
	l1 = strings.TrimSpace(l1)
	l2 = strings.TrimSpace(l2)

	if t.Contains(l1, l2) {
		return l1, l2
	}

	for _, c := range t.Categories {
		if c.Name == l1 {
			return c.Name, c.Subcategories[0].Name
		}
	}

	for _, c := range t.Categories {
		if !containsEither(c.Name, l1) {
			continue
		}
		for _, s := range c.Subcategories {
			if containsEither(s.Name, l2) {
				return c.Name, s.Name
			}
		}
	}

	first := t.Categories[0]
	return first.Name, first.Subcategories[0].Name
}

// containsEither reports whether either non-empty string contains the
// other.
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
