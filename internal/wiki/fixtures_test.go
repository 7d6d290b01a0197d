package wiki

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// fixedNow is 2026-10-14 09:00 in UTC+8.
var fixedNow = time.Date(2026, 10, 14, 9, 0, 0, 0, Zone)

func fixedClock() time.Time { return fixedNow }

const versionsPage = `<html><body>
<table class="nav"><tbody>
<tr><th>导航</th><th>链接</th></tr>
<tr><th>9.9</th><td>2030/01/01</td></tr>
</tbody></table>
<table class="wikitable">
<tr><th>版本</th><th>上线时间</th><th>c3</th><th>c4</th><th>c5</th><th>c6</th><th>c7</th><th>c8</th><th>c9</th><th>c10</th></tr>
<tr><th>3.1
</th><td>2023/12/27
</td><td>x</td></tr>
<tr><th>3.2</th><td>2024/02/01</td><td>x</td></tr>
<tr><th>3.3</th><td>2024/03/29 10:00</td><td>x</td></tr>
</table>
</body></html>`

const eventsPage = `<html><body>
<table id="CardSelectTr"><tbody>
<tr><th>时间</th><th>图片</th><th>名称</th></tr>
<tr data-param1="限时活动, 版本活动"><td>3.2版本更新后~3.2版本结束</td><td>img</td><td>
活动A</td></tr>
<tr data-param1="特殊活动"><td>garbage</td><td></td><td>特殊</td></tr>
<tr data-param1="限时活动"><td>2024/02/05 10:00~3.4版本结束前</td><td></td><td>活动B</td></tr>
<tr data-param1="永久活动, 限时活动"><td>no range</td><td></td><td>永久</td></tr>
<tr data-param1="常驻"><td>正式开服后~3.1版本结束</td><td></td><td>活动C</td></tr>
</tbody></table>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func mustTimeline(t *testing.T) *Timeline {
	t.Helper()
	tl, err := BuildTimeline(mustDoc(t, versionsPage))
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}
	return tl
}

// eventsTable wraps data rows in the schedule table markup.
func eventsTable(rows ...string) string {
	return `<table id="CardSelectTr"><tbody><tr><th>时间</th><th>图片</th><th>名称</th></tr>` +
		strings.Join(rows, "") + `</tbody></table>`
}
