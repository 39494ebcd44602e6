package utils

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// renderer 一种内容的 markdown 解析和清洗规则
type renderer struct {
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	enhance bool // 是否再做图片懒加载、地图链接标记
}

var (
	// Loop 描述：允许图片和链接，地图链接单独标记
	descriptionRenderer = renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough, extension.Table),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithXHTML()),
		),
		policy:  descriptionPolicy(),
		enhance: true,
	}

	// 评论：只保留行内格式、列表和链接
	commentRenderer = renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithXHTML()),
		),
		policy: commentPolicy(),
	}
)

func descriptionPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowImages()
	p.AllowURLSchemes("http", "https", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

func commentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "del", "code", "ul", "ol", "li", "blockquote")
	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https")
	p.AllowAttrs("href").OnElements("a")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

func (r renderer) render(source string) string {
	if source == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return html.EscapeString(source)
	}

	out := r.policy.SanitizeBytes(buf.Bytes())
	if !r.enhance {
		return string(out)
	}
	return EnhanceHTMLContent(string(out))
}

// RenderDescription renders a loop description to sanitised HTML. Images are
// lazy loaded and Google Maps links carry the map-link class.
func RenderDescription(source string) string {
	return descriptionRenderer.render(source)
}

// RenderComment 评论只允许简单格式，图片和标题都会被去掉
func RenderComment(source string) string {
	return commentRenderer.render(source)
}
