package notifier

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"ArtalePriceBot/internal/model"
)

// SiteURL is linked from item replies.
const SiteURL = "https://artale-market.org"

var trendText = map[model.TrendLabel]string{
	model.TrendLargeIncrease: "大幅上漲 📈",
	model.TrendIncrease:      "上漲 📈",
	model.TrendStable:        "穩定 ➡️",
	model.TrendDecrease:      "下跌 📉",
	model.TrendLargeDecrease: "大幅下跌 📉",
}

// TrendText renders a trend label for chat.
func TrendText(label model.TrendLabel) string {
	if s, ok := trendText[label]; ok {
		return s
	}
	return trendText[model.TrendStable]
}

func percent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// FormatItem renders a single item's price card.
func FormatItem(it model.FormattedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 <b>%s</b> - 價格信息\n\n", html.EscapeString(it.Name))
	fmt.Fprintf(&b, "📦 物品類型: %s\n", html.EscapeString(it.Category))
	b.WriteString("💵 <b>價格區間</b>\n")
	fmt.Fprintf(&b, "  最低: %s\n", it.Low)
	fmt.Fprintf(&b, "  中位: %s\n", it.Median)
	fmt.Fprintf(&b, "  最高: %s\n", it.High)
	fmt.Fprintf(&b, "📈 價格趨勢: %s (%s)\n", TrendText(it.Trend), percent(it.TrendPercent))
	fmt.Fprintf(&b, "📊 交易量: %d 筆\n", it.Volume)
	fmt.Fprintf(&b, "🕒 最後更新: %s\n", html.EscapeString(it.LastUpdated))
	fmt.Fprintf(&b, "🔗 <a href=\"%s/price-trends\">點擊查看詳細信息</a>\n\n", SiteURL)
	fmt.Fprintf(&b, "<i>數據來源: %s</i>", html.EscapeString(it.Source))
	if it.Degraded {
		b.WriteString("\n⚠️ 目前無法連線至市場網站，以上為離線參考資料，價格可能不準確。")
	}
	return b.String()
}

// FormatNotFound renders the reply for a query that matched nothing.
func FormatNotFound(query string) string {
	var b strings.Builder
	b.WriteString("❌ <b>搜索失敗</b>\n\n")
	fmt.Fprintf(&b, "很抱歉，無法找到「%s」的價格信息。\n\n", html.EscapeString(query))
	b.WriteString("可能的原因：\n• 道具名稱拼寫錯誤\n• 該道具尚未有交易記錄\n• 網站暫時無法訪問\n\n")
	b.WriteString("💡 <b>建議</b>\n• 檢查道具名稱拼寫\n• 嘗試使用道具的簡稱\n• 稍後再試")
	return b.String()
}

// FormatItemList renders a numbered list under title. empty is shown when
// there are no items.
func FormatItemList(title string, items []model.FormattedItem, empty string) string {
	if len(items) == 0 {
		return fmt.Sprintf("%s\n\n%s", title, empty)
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. <b>%s</b> - %s (交易量: %d)\n   %s (%s)",
			i+1, html.EscapeString(it.Name), it.Median, it.Volume, TrendText(it.Trend), percent(it.TrendPercent))
	}
	if items[0].Degraded {
		b.WriteString("\n\n⚠️ 離線參考資料")
	}
	return b.String()
}

// FormatPopular renders the most traded items.
func FormatPopular(items []model.FormattedItem) string {
	return FormatItemList("🔥 <b>熱門道具</b>", items, "目前沒有交易資料。")
}

// FormatTrending renders the biggest movers.
func FormatTrending(items []model.FormattedItem) string {
	return FormatItemList("📈 <b>價格波動道具</b>", items, "目前沒有明顯的價格波動。")
}

// FormatCategory renders the items of one category.
func FormatCategory(category string, items []model.FormattedItem) string {
	title := fmt.Sprintf("📦 <b>%s</b>", html.EscapeString(category))
	return FormatItemList(title, items, "找不到這個類型的道具，輸入 /categories 查看所有類型。")
}

// FormatCategories renders the list of known categories.
func FormatCategories(categories []string) string {
	if len(categories) == 0 {
		return "📂 <b>道具類型</b>\n\n目前沒有可用的類型資料，請先查詢任一道具。"
	}
	var b strings.Builder
	b.WriteString("📂 <b>道具類型</b>\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "\n• %s", html.EscapeString(c))
	}
	return b.String()
}

// FormatHelp renders usage instructions.
func FormatHelp() string {
	return "🤖 <b>Artale Market 機器人使用說明</b>\n\n" +
		"這個機器人可以幫你查詢楓之谷 Artale 的道具價格信息！\n\n" +
		"📋 <b>使用方法</b>\n" +
		"直接輸入道具名稱，或使用指令：\n" +
		"/price 道具名稱 (也可用 /p、價格)\n" +
		"/popular [數量] 熱門道具\n" +
		"/trending [數量] 價格波動道具\n" +
		"/category 類型 該類型的道具\n" +
		"/categories 所有道具類型\n\n" +
		"💡 <b>範例</b>\n" +
		"楓葉\n/price 頭盔\n/p 藥水\n\n" +
		fmt.Sprintf("🔗 <a href=\"%s\">Artale Market 官網</a>", SiteURL)
}

// FormatDigest renders the scheduled market summary.
func FormatDigest(popular, trending []model.FormattedItem, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Artale 市場摘要</b> | %s\n\n", now.Format("2006-01-02 15:04"))
	b.WriteString(FormatPopular(popular))
	b.WriteString("\n\n")
	b.WriteString(FormatTrending(trending))
	return b.String()
}
