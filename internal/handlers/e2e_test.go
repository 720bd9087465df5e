package handlers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-basket-client/internal/basket"
	"github.com/imrishuroy/go-basket-client/internal/client"
	"github.com/imrishuroy/go-basket-client/internal/idempotency"
	"github.com/imrishuroy/go-basket-client/internal/store"
)

func TestClientAgainstServer(t *testing.T) {
	for _, preserve := range []bool{false, true} {
		name := "plain"
		if preserve {
			name = "preserve references"
		}
		t.Run(name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			srv := httptest.NewServer(NewRouter(HandlerConfig{
				Baskets:            store.NewMemory(),
				Idempotency:        idempotency.NewMemory(time.Hour),
				Catalog:            testCatalog(),
				PreserveReferences: preserve,
			}))
			defer srv.Close()

			svc := client.NewService(client.NewHTTPTransport(srv.URL, 2*time.Second), nil)
			ctx := context.Background()

			b, err := svc.GetBasketByUser(ctx, 11)
			require.NoError(t, err)
			assert.Equal(t, int64(11), b.ID)
			assert.Empty(t, b.Items)

			require.NoError(t, svc.AddProduct(ctx, b.ID, 1, 2))
			require.NoError(t, svc.AddProduct(ctx, b.ID, 2, 30))
			require.NoError(t, svc.IncreaseQuantity(ctx, b.ID, 1))

			b, err = svc.GetBasketByUser(ctx, 11)
			require.NoError(t, err)
			require.Len(t, b.Items, 2)
			camera, ok := b.Item(1)
			require.True(t, ok)
			assert.Equal(t, 3, camera.Quantity)
			product, ok := camera.Product.Get()
			require.True(t, ok)
			assert.Equal(t, "Vintage camera", product.Title)
			seller, ok := product.Seller.Get()
			require.True(t, ok)
			assert.Equal(t, "ana", seller.Username)
			require.Len(t, product.Tags, 1)
			assert.Equal(t, "retro", product.Tags[0].Name)

			tripod, _ := b.Item(2)
			assert.Equal(t, basket.MaxQuantityPerItem, tripod.Quantity)

			rate, err := svc.ApplyPromoCode(ctx, b.ID, "flash30")
			require.NoError(t, err)
			assert.Equal(t, "0.3", rate.String())

			_, err = svc.ApplyPromoCode(ctx, b.ID, "NOPE")
			assert.ErrorIs(t, err, basket.ErrInvalidPromoCode)

			remote, err := svc.CalculateTotals(ctx, b.ID, "FLASH30")
			require.NoError(t, err)
			local := svc.LocalTotals(b, "FLASH30")
			assert.True(t, remote.Subtotal.Equal(local.Subtotal), "subtotal %s vs %s", remote.Subtotal, local.Subtotal)
			assert.True(t, remote.TotalAmount.Equal(local.TotalAmount))
			assert.Equal(t, "405", remote.Subtotal.String())

			ok, err = svc.ValidateBeforeCheckout(ctx, b.ID)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, svc.DecreaseQuantity(ctx, b.ID, 1))
			require.NoError(t, svc.UpdateQuantity(ctx, b.ID, 2, 0))
			require.NoError(t, svc.RemoveProduct(ctx, b.ID, 1))

			err = svc.RemoveProduct(ctx, b.ID, 1)
			var te *client.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, 404, te.StatusCode)

			require.NoError(t, svc.ClearBasket(ctx, b.ID))
			ok, err = svc.ValidateBeforeCheckout(ctx, b.ID)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
