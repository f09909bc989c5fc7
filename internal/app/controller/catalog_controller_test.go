package controller

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogController_FeaturedItems(t *testing.T) {
	s := setupStack(t, stackOptions{})

	w := s.do(t, http.MethodGet, "/api/v1/products/featured", nil, newGuest())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, float64(3), body["count"])
	items := body["data"].([]interface{})
	require.Len(t, items, 3)

	var ids []string
	for _, raw := range items {
		item := raw.(map[string]interface{})
		assert.Equal(t, true, item["featured"])
		ids = append(ids, item["id"].(string))
	}
	assert.Equal(t, []string{"camphor-camphor-lavender", "camphor-pure-camphor", "wood-infused-pine"}, ids)
}

func TestCatalogController_FeaturedDoesNotShadowItem(t *testing.T) {
	s := setupStack(t, stackOptions{})

	w := s.do(t, http.MethodGet, "/api/v1/products/"+cedarID, nil, newGuest())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.Equal(t, cedarID, data["id"])
	assert.Equal(t, false, data["featured"])
}
