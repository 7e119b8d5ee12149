package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav-trails/backend/pkg/httpclient"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const gearCSV = "Category,Name,BRAND,Description,Link,Image,Price\n" +
	"Footwear,Trail runner,Salomon,Light shoe,https://x/shoe,,4999\n" +
	"Layers,Fleece,Decathlon,,https://x/fleece,,1299\n" +
	"Footwear,Gaiters,Quechua,,,,499\n" +
	",Headlamp,Petzl,,,,\n" +
	"Layers,,nameless row,,,,\n"

func TestParseGearCSV_GroupsByHeader(t *testing.T) {
	items, err := ParseGearCSV(strings.NewReader(gearCSV))
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "Salomon", items[0].Brand)
	assert.Equal(t, "4999", items[0].Price)
	assert.Equal(t, "Other", items[3].Category)

	groups := GroupGear(items)
	require.Len(t, groups, 3)
	assert.Equal(t, "Footwear", groups[0].Category)
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, "Layers", groups[1].Category)
	assert.Equal(t, "Other", groups[2].Category)
}

func TestParseGearCSV_RequiresNameColumn(t *testing.T) {
	_, err := ParseGearCSV(strings.NewReader("category,brand\nx,y\n"))
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "kedarkantha-winter-trek", Slugify("  Kedarkantha: Winter Trek! "))
	assert.Equal(t, "", Slugify(" !! "))
}

func TestNormalizeBlock(t *testing.T) {
	var raw rawBlock
	require.NoError(t, json.Unmarshal([]byte(`{
		"type":"to_do",
		"to_do":{"rich_text":[{"plain_text":"Pack "},{"plain_text":"rain cover"}],"checked":true}
	}`), &raw))
	b := normalizeBlock(raw)
	assert.Equal(t, "to_do", b.Type)
	assert.Equal(t, "Pack rain cover", b.Text)
	require.NotNil(t, b.Checked)
	assert.True(t, *b.Checked)

	require.NoError(t, json.Unmarshal([]byte(`{
		"type":"image",
		"image":{"type":"external","external":{"url":"https://img/1.jpg"},"caption":[{"plain_text":"Summit"}]}
	}`), &raw))
	b = normalizeBlock(raw)
	assert.Equal(t, "https://img/1.jpg", b.URL)
	assert.Equal(t, "Summit", b.Text)
	assert.Nil(t, b.Checked)

	b = normalizeBlock(rawBlock{"type": "divider", "divider": map[string]any{}})
	assert.Equal(t, Block{Type: "divider"}, b)
}

func notionServer(t *testing.T, queries *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/databases/db1/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		atomic.AddInt32(queries, 1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body["start_cursor"] == nil {
			_, _ = w.Write([]byte(`{"results":[{"id":"page-1",
				"cover":{"type":"external","external":{"url":"https://img/cover.jpg"}},
				"properties":{
					"Name":{"type":"title","title":[{"plain_text":"Kedarkantha Trek"}]},
					"Region":{"type":"select","select":{"name":"Uttarakhand"}},
					"Difficulty":{"type":"multi_select","multi_select":[{"name":"Easy"},{"name":"Moderate"}]},
					"Distance":{"type":"number","number":20.5},
					"Summary":{"type":"rich_text","rich_text":[{"plain_text":"Snow trek"}]}
				}}],"has_more":true,"next_cursor":"c2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"page-2","cover":null,
			"properties":{
				"Title":{"type":"title","title":[{"plain_text":"Hampta Pass"}]},
				"Slug":{"type":"rich_text","rich_text":[{"plain_text":"hampta"}]},
				"Duration":{"type":"formula","formula":{"type":"string","string":"5 days"}}
			}}],"has_more":false,"next_cursor":null}`))
	})
	mux.HandleFunc("/v1/blocks/page-2/children", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"type":"heading_2","heading_2":{"rich_text":[{"plain_text":"Day 1"}]}},
			{"type":"bookmark","bookmark":{"url":"https://maps/hampta"}}
		],"has_more":false}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNotionClient_QueryAndBlocks(t *testing.T) {
	var queries int32
	srv := notionServer(t, &queries)
	client := NewNotionClient(srv.URL, "secret", "2022-06-28", "db1")

	trails, err := client.QueryTrails(context.Background())
	require.NoError(t, err)
	require.Len(t, trails, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&queries))

	k := trails[0]
	assert.Equal(t, "kedarkantha-trek", k.Slug)
	assert.Equal(t, "Uttarakhand", k.Region)
	assert.Equal(t, "Easy, Moderate", k.Difficulty)
	assert.Equal(t, "20.5", k.Distance)
	assert.Equal(t, "https://img/cover.jpg", k.Cover)
	assert.Equal(t, "Snow trek", k.Summary)

	h := trails[1]
	assert.Equal(t, "hampta", h.Slug)
	assert.Equal(t, "5 days", h.Duration)
	assert.Empty(t, h.Cover)

	blocks, err := client.PageBlocks(context.Background(), "page-2")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, Block{Type: "heading_2", Text: "Day 1"}, blocks[0])
	assert.Equal(t, "https://maps/hampta", blocks[1].URL)
}

func TestSheetSource_FetchGear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(gearCSV))
	}))
	defer srv.Close()

	src := NewSheetSource(httpclient.New(httpclient.Options{}), srv.URL)
	groups, err := src.FetchGear(context.Background())
	require.NoError(t, err)
	assert.Len(t, groups, 3)

	_, err = NewSheetSource(httpclient.New(httpclient.Options{}), "").FetchGear(context.Background())
	assert.Error(t, err)
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, "content:"), mr
}

func TestRedisCache_SetGetInvalidate(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "keep"))

	var got []string
	ok, err := cache.Get(ctx, "gear", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "gear", []string{"a", "b"}, time.Minute))
	ok, err = cache.Get(ctx, "gear", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.True(t, mr.TTL("content:gear") > 0)

	mr.FastForward(2 * time.Minute)
	ok, err = cache.Get(ctx, "gear", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "trail:x", 1, time.Minute))
	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, mr.Exists("content:trail:x"))
	assert.True(t, mr.Exists("other:key"))
}

type fakeGear struct{ calls int32 }

func (f *fakeGear) FetchGear(ctx context.Context) ([]GearCategory, error) {
	atomic.AddInt32(&f.calls, 1)
	return []GearCategory{{Category: "Footwear", Items: []GearItem{{Category: "Footwear", Name: "Boots"}}}}, nil
}

type fakeTrails struct {
	list    []TrailSummary
	queries int32
	blocks  int32
}

func (f *fakeTrails) QueryTrails(ctx context.Context) ([]TrailSummary, error) {
	atomic.AddInt32(&f.queries, 1)
	return f.list, nil
}

func (f *fakeTrails) PageBlocks(ctx context.Context, pageID string) ([]Block, error) {
	atomic.AddInt32(&f.blocks, 1)
	return []Block{{Type: "paragraph", Text: "page " + pageID}}, nil
}

func TestService_CachesAndResolvesSlugs(t *testing.T) {
	cache, _ := newRedisCache(t)
	gear := &fakeGear{}
	trails := &fakeTrails{list: []TrailSummary{{ID: "p1", Slug: "kedarkantha", Title: "Kedarkantha"}}}
	svc := NewService(gear, trails, cache, time.Minute, nil)
	clock := time.Now()
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Gear(ctx)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, gear.calls)

	detail, err := svc.Trail(ctx, "kedarkantha")
	require.NoError(t, err)
	assert.Equal(t, "p1", detail.ID)
	assert.Equal(t, "page p1", detail.Blocks[0].Text)
	_, err = svc.Trail(ctx, "kedarkantha")
	require.NoError(t, err)
	assert.EqualValues(t, 1, trails.blocks)

	// A page added after the list was cached is found by refreshing.
	clock = clock.Add(minRefresh)
	trails.list = append(trails.list, TrailSummary{ID: "p2", Slug: "hampta"})
	detail, err = svc.Trail(ctx, "hampta")
	require.NoError(t, err)
	assert.Equal(t, "p2", detail.ID)

	_, err = svc.Trail(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Gear(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, gear.calls)
}

func TestHandler_Routes(t *testing.T) {
	trails := &fakeTrails{list: []TrailSummary{{ID: "p1", Slug: "kedarkantha"}}}
	h := NewHandler(NewService(&fakeGear{}, trails, nil, time.Minute, nil), nil)
	r := gin.New()
	r.GET("/gear", h.Gear)
	r.GET("/trails", h.Trails)
	r.GET("/trails/:slug", h.Trail)
	r.POST("/admin/content/invalidate", h.Invalidate)

	cases := []struct {
		method, path string
		status       int
		contains     string
	}{
		{http.MethodGet, "/gear", http.StatusOK, `"Boots"`},
		{http.MethodGet, "/trails", http.StatusOK, `"kedarkantha"`},
		{http.MethodGet, "/trails/Kedarkantha", http.StatusOK, `"page p1"`},
		{http.MethodGet, "/trails/unknown", http.StatusNotFound, "trail not found"},
		{http.MethodPost, "/admin/content/invalidate", http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.contains)
		})
	}
}

func TestService_UnknownSlugDoesNotHammerNotion(t *testing.T) {
	cache, mr := newRedisCache(t)
	trails := &fakeTrails{list: []TrailSummary{{ID: "p1", Slug: "kedarkantha"}}}
	svc := NewService(&fakeGear{}, trails, cache, 10*time.Minute, nil)
	clock := time.Now()
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := svc.Trail(ctx, "does-not-exist")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&trails.queries))
	assert.True(t, mr.Exists("content:miss:does-not-exist"))

	// Once the negative entry expires and the refresh window has passed,
	// a new page becomes reachable.
	trails.list = append(trails.list, TrailSummary{ID: "p9", Slug: "does-not-exist"})
	mr.FastForward(missTTL)
	clock = clock.Add(minRefresh)
	detail, err := svc.Trail(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "p9", detail.ID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&trails.queries))
}
