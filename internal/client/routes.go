package client

import "fmt"

// BuyerBasketPath is the basket document of a buyer.
func BuyerBasketPath(userID int64) string {
	return fmt.Sprintf("/api/buyers/%d/basket", userID)
}

// BasketPath addresses a basket by id.
func BasketPath(basketID int64) string {
	return fmt.Sprintf("/api/baskets/%d", basketID)
}

// ItemPath addresses one product line of a basket.
func ItemPath(basketID, productID int64) string {
	return fmt.Sprintf("/api/baskets/%d/items/%d", basketID, productID)
}
