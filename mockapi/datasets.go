package mockapi

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-llmops/client"
)

type Dataset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	Description   string `json:"description"`
	DocumentCount int    `json:"document_count"`
	CreatedAt     int64  `json:"created_at"`
}

type datasetStore struct {
	mu    sync.RWMutex
	items []Dataset // newest first
}

func newDatasetStore() *datasetStore {
	st := &datasetStore{}
	now := time.Now().Unix()
	for i, name := range []string{"Product manuals", "Support tickets", "API reference", "Release notes", "FAQ"} {
		st.items = append(st.items, Dataset{
			ID:            uuid.New().String(),
			Name:          name,
			Description:   name + " knowledge base",
			DocumentCount: (i + 1) * 3,
			CreatedAt:     now - int64(i*3600),
		})
	}
	return st
}

func (st *datasetStore) page(search string, current, size int) client.Page[Dataset] {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var matched []Dataset
	for _, d := range st.items {
		if search == "" || strings.Contains(strings.ToLower(d.Name), strings.ToLower(search)) {
			matched = append(matched, d)
		}
	}

	total := len(matched)
	totalPage := (total + size - 1) / size
	from := (current - 1) * size
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}

	list := make([]Dataset, 0, to-from)
	list = append(list, matched[from:to]...)

	return client.Page[Dataset]{
		List: list,
		Paginator: client.Paginator{
			TotalPage:   totalPage,
			TotalRecord: total,
			CurrentPage: current,
			PageSize:    size,
		},
	}
}

func (st *datasetStore) get(id string) (Dataset, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, d := range st.items {
		if d.ID == id {
			return d, true
		}
	}
	return Dataset{}, false
}

func (st *datasetStore) add(d Dataset) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.items = append([]Dataset{d}, st.items...)
}

func (st *datasetStore) remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, d := range st.items {
		if d.ID == id {
			st.items = append(st.items[:i], st.items[i+1:]...)
			return true
		}
	}
	return false
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *Server) listDatasets(c *gin.Context) {
	current := intQuery(c, "current_page", 1)
	size := intQuery(c, "page_size", 20)
	ok(c, s.datasets.page(c.Query("search_word"), current, size))
}

func (s *Server) getDataset(c *gin.Context) {
	d, found := s.datasets.get(c.Param("dataset_id"))
	if !found {
		fail(c, http.StatusOK, client.CodeNotFound, "dataset missing")
		return
	}
	ok(c, d)
}

func (s *Server) createDataset(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Icon        string `json:"icon"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, client.CodeValidateError, "invalid json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusOK, client.CodeValidateError, "name is required")
		return
	}

	d := Dataset{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Icon:        req.Icon,
		Description: req.Description,
		CreatedAt:   time.Now().Unix(),
	}
	s.datasets.add(d)
	ok(c, d)
}

func (s *Server) deleteDataset(c *gin.Context) {
	if !s.datasets.remove(c.Param("dataset_id")) {
		fail(c, http.StatusOK, client.CodeNotFound, "dataset missing")
		return
	}
	ok(c, map[string]any{})
}

type category struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
}

func (s *Server) listCategories(c *gin.Context) {
	ok(c, []category{
		{Category: "search", Name: "Search", Icon: "search.svg"},
		{Category: "image", Name: "Image", Icon: "image.svg"},
		{Category: "weather", Name: "Weather", Icon: "weather.svg"},
		{Category: "tool", Name: "Tools", Icon: "tool.svg"},
	})
}
