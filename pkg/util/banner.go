package util

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

// 定义颜色常量
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

var colors = map[string]string{
	"red":    ColorRed,
	"green":  ColorGreen,
	"yellow": ColorYellow,
	"blue":   ColorBlue,
	"cyan":   ColorCyan,
}

// colorCode 颜色名转 ANSI 颜色码，未知颜色不着色
func colorCode(name string) string {
	if c, ok := colors[name]; ok {
		return c
	}
	return ""
}

// BannerLines 返回 ASCII banner 的每一行
func BannerLines(text string) []string {
	return figure.NewFigure(text, "", true).Slicify()
}

// PrintBanner 打印 banner 及版本信息，color 为空或未知时不着色
func PrintBanner(w io.Writer, text, color, version string) {
	ansi := colorCode(color)
	reset := ""
	if ansi != "" {
		reset = ColorReset
	}
	for _, line := range BannerLines(text) {
		fmt.Fprintln(w, ansi+line+reset)
	}
	if version != "" {
		fmt.Fprintf(w, "%s version %s\n", text, version)
	}
}
