package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/chargepanel/internal/domain/model"
)

func TestParseText_LabeledBullets(t *testing.T) {
	n := NewPlaceNormalizer()

	places := n.ParseText("* **Cafe Sun**\n* **Địa chỉ:** 12 Le Loi\n* **Mô tả:** cozy spot")

	require.Len(t, places, 1)
	assert.Equal(t, "Cafe Sun", places[0].Name)
	assert.Equal(t, "12 Le Loi", places[0].Address)
	assert.Equal(t, "cozy spot", places[0].Description)
	assert.Empty(t, places[0].Category)
	assert.Empty(t, places[0].Highlights)
}

func TestParseText_MultipleBlocksWithSubLines(t *testing.T) {
	n := NewPlaceNormalizer()

	src := "Here are some places near the station:\r\n\r\n" +
		"* **Cafe Sun**\r\n" +
		"  * **Address:** 12 Le Loi\r\n" +
		"  * **Loại:** Quán cà phê\r\n" +
		"  * **Wifi:** free\r\n" +
		"* **Park A**\r\n" +
		"  * Shady walking paths\r\n" +
		"  * Open until 22:00\r\n"

	places := n.ParseText(src)

	require.Len(t, places, 2)

	cafe := places[0]
	assert.Equal(t, "Cafe Sun", cafe.Name)
	assert.Equal(t, "12 Le Loi", cafe.Address)
	assert.Equal(t, "Quán cà phê", cafe.Category)
	assert.Equal(t, []string{"Wifi: free"}, cafe.Highlights)

	park := places[1]
	assert.Equal(t, "Park A", park.Name)
	assert.Equal(t, "Shady walking paths\nOpen until 22:00", park.Description)
}

func TestParseText_ExtendedLabels(t *testing.T) {
	n := NewPlaceNormalizer()

	src := "* **Vincom Mall**\n" +
		"* **Khoảng cách:** 1.2 km\n" +
		"* **Thời gian di chuyển:** 15 phút\n" +
		"* **Đánh giá:** 4.5/5\n" +
		"* **Rating:** excellent\n"

	places := n.ParseText(src)

	require.Len(t, places, 1)
	p := places[0]
	require.NotNil(t, p.Distance)
	assert.Equal(t, "1.2 km", p.Distance.Text)
	assert.Equal(t, ptr(1.2), p.Distance.Km)
	assert.Nil(t, p.Distance.Meters)
	assert.Equal(t, ptr(15), p.TravelTimeMinutes)
	assert.Equal(t, ptr(4.5), p.Rating)
	assert.Equal(t, []string{"Rating: excellent"}, p.Highlights)
}

func TestParseText_TravelTimeInHours(t *testing.T) {
	n := NewPlaceNormalizer()

	places := n.ParseText("* **Lake View**\n* **Travel time:** 1 hour")

	require.Len(t, places, 1)
	assert.Equal(t, ptr(60), places[0].TravelTimeMinutes)
}

func TestParseText_OrderedListAndInlineDescription(t *testing.T) {
	n := NewPlaceNormalizer()

	src := "1. **Cafe Sun** - quiet coffee shop\n2. **Park A** – green space\n"

	places := n.ParseText(src)

	require.Len(t, places, 2)
	assert.Equal(t, "Cafe Sun", places[0].Name)
	assert.Equal(t, "quiet coffee shop", places[0].Description)
	assert.Equal(t, "Park A", places[1].Name)
	assert.Equal(t, "green space", places[1].Description)
}

func TestParseText_DotBullets(t *testing.T) {
	n := NewPlaceNormalizer()

	places := n.ParseText("• **Cafe Sun**\n• **Mô tả:** cozy spot")

	require.Len(t, places, 1)
	assert.Equal(t, "cozy spot", places[0].Description)
}

func TestParseText_DescriptionsAppend(t *testing.T) {
	n := NewPlaceNormalizer()

	src := "* **Cafe Sun**\n* **Mô tả:** cozy spot\n* **Giới thiệu:** family run"

	places := n.ParseText(src)

	require.Len(t, places, 1)
	assert.Equal(t, "cozy spot\nfamily run", places[0].Description)
}

func TestParseText_FirstAddressWins(t *testing.T) {
	n := NewPlaceNormalizer()

	places := n.ParseText("* **Cafe Sun**\n* **Địa chỉ:** 12 Le Loi\n* **Vị trí:** second floor")

	require.Len(t, places, 1)
	assert.Equal(t, "12 Le Loi", places[0].Address)
}

func TestParseText_DedupesByName(t *testing.T) {
	n := NewPlaceNormalizer()

	places := n.ParseText("* **Park A**\n* **Địa chỉ:** first\n* **Park A**\n* **Địa chỉ:** second")

	require.Len(t, places, 1)
	assert.Equal(t, "first", places[0].Address)
}

func TestParseText_LabeledNamesOpenSiblingBlocks(t *testing.T) {
	n := NewPlaceNormalizer()

	src := "* **Cafe Sun:** cozy\n" +
		"  * **Địa chỉ:** 12 Le Loi\n" +
		"  * **Wifi:** free\n" +
		"* **Park A:** green space\n"

	places := n.ParseText(src)

	require.Len(t, places, 2)
	assert.Equal(t, "Cafe Sun", places[0].Name)
	assert.Equal(t, "cozy", places[0].Description)
	assert.Equal(t, "12 Le Loi", places[0].Address)
	assert.Equal(t, []string{"Wifi: free"}, places[0].Highlights)
	assert.Equal(t, "Park A", places[1].Name)
	assert.Equal(t, "green space", places[1].Description)
}

func TestParseText_TitledBlockKeepsSameLevelLabels(t *testing.T) {
	n := NewPlaceNormalizer()

	places := n.ParseText("* **Cafe Sun**\n* **Giờ mở cửa:** 7h - 22h\n* **Park A**")

	require.Len(t, places, 2)
	assert.Equal(t, []string{"Giờ mở cửa: 7h - 22h"}, places[0].Highlights)
	assert.Equal(t, "Park A", places[1].Name)
}

func TestParseText_LabelInsideBold(t *testing.T) {
	n := NewPlaceNormalizer()

	places := n.ParseText("* **Cafe Sun**\n* **Địa chỉ: 12 Le Loi**\n* **Wifi: free**\n* **Mô tả: cozy** spot")

	require.Len(t, places, 1)
	assert.Equal(t, "Cafe Sun", places[0].Name)
	assert.Equal(t, "12 Le Loi", places[0].Address)
	assert.Equal(t, []string{"Wifi: free"}, places[0].Highlights)
	assert.Equal(t, "cozy spot", places[0].Description)
}

func TestSplitBoldLabel(t *testing.T) {
	tests := []struct {
		name      string
		label     string
		value     string
		inBlock   bool
		wantLabel string
		wantValue string
	}{
		{name: "known field", label: "Địa chỉ: 12 Le Loi", wantLabel: "Địa chỉ:", wantValue: "12 Le Loi"},
		{name: "unknown outside block", label: "Cafe: Sun", wantLabel: "Cafe: Sun"},
		{name: "unknown inside block", label: "Wifi: free", inBlock: true, wantLabel: "Wifi:", wantValue: "free"},
		{name: "trailing colon", label: "Address:", value: " 1 Main", wantLabel: "Address:", wantValue: " 1 Main"},
		{name: "no colon", label: "Cafe Sun", inBlock: true, wantLabel: "Cafe Sun"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, value := splitBoldLabel(tt.label, tt.value, tt.inBlock)
			assert.Equal(t, tt.wantLabel, label)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestParseText_IgnoresTextWithoutBlocks(t *testing.T) {
	n := NewPlaceNormalizer()

	tests := []struct {
		name string
		src  string
	}{
		{name: "empty", src: ""},
		{name: "prose", src: "There is nothing interesting nearby."},
		{name: "labels before any name", src: "* **Địa chỉ:** 12 Le Loi\n* **Mô tả:** nowhere"},
		{name: "unterminated bold", src: "* **Cafe Sun"},
		{name: "heading only", src: "## **Nearby places**"},
		{name: "code block", src: "```\n* **Cafe Sun**\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var places []model.Place
			assert.NotPanics(t, func() { places = n.ParseText(tt.src) })
			assert.Empty(t, places)
		})
	}
}

func TestParseText_StripsInlineHTML(t *testing.T) {
	n := NewPlaceNormalizer()

	places := n.ParseText("* **Cafe <i>Sun</i>**\n* **Mô tả:** cozy <script>x()</script>spot")

	require.Len(t, places, 1)
	assert.Equal(t, "Cafe Sun", places[0].Name)
	assert.NotContains(t, places[0].Description, "<")
}

func TestClassifyLabel(t *testing.T) {
	tests := []struct {
		label string
		want  labelField
	}{
		{"Địa chỉ", fieldAddress},
		{"ĐỊA CHỈ", fieldAddress},
		{"Address", fieldAddress},
		{"Mô tả", fieldDescription},
		{"Description", fieldDescription},
		{"Loại hình", fieldCategory},
		{"Category", fieldCategory},
		{"Khoảng cách", fieldDistance},
		{"Thời gian đi bộ", fieldTravelTime},
		{"Đánh giá", fieldRating},
		{"Giờ mở cửa", fieldHighlight},
		{"Wifi", fieldHighlight},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyLabel(tt.label))
		})
	}
}

func TestFoldLabel(t *testing.T) {
	assert.Equal(t, "dia chi", foldLabel("  Địa   Chỉ "))
	assert.Equal(t, "thoi gian di chuyen", foldLabel("Thời gian di chuyển"))
}

func TestParseDistanceText(t *testing.T) {
	d := parseDistanceText("khoảng 350 m")
	require.NotNil(t, d)
	assert.Equal(t, ptr(350), d.Meters)
	assert.Nil(t, d.Km)

	d = parseDistanceText("2,5km")
	assert.Equal(t, ptr(2.5), d.Km)

	d = parseDistanceText("a short walk")
	assert.Equal(t, "a short walk", d.Text)
	assert.Nil(t, d.Meters)
	assert.Nil(t, d.Km)
}
