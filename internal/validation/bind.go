package validation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-basket-client/internal/basket"
)

// fieldErrors maps a failing field to the domain error shown to callers.
var fieldErrors = map[string]error{
	"UserID":    basket.ErrInvalidUserID,
	"BasketID":  basket.ErrInvalidBasketID,
	"ProductID": basket.ErrInvalidProductID,
	"Quantity":  basket.ErrNegativeQuantity,
	"Code":      basket.ErrEmptyPromoCode,
}

// BindURI binds path parameters into `out` and runs validation.
// If either step fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindURI(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindUri(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_path",
			"msg":   err.Error(),
		})
		return err
	}
	return validate(c, out, v)
}

// BindQuery binds the query string into `out` and runs validation.
func BindQuery(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindQuery(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_query",
			"msg":   err.Error(),
		})
		return err
	}
	return validate(c, out, v)
}

// BindQuantity reads a bare JSON integer body.
func BindQuantity(c *gin.Context, v *validatorv10.Validate) (int, error) {
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req.Quantity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return 0, err
	}
	if err := validate(c, &req, v); err != nil {
		return 0, err
	}
	return req.Quantity, nil
}

// BindPromoCode reads a bare JSON string body.
func BindPromoCode(c *gin.Context, v *validatorv10.Validate) (string, error) {
	var req PromoRequest
	if err := c.ShouldBindJSON(&req.Code); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return "", err
	}
	if err := validate(c, &req, v); err != nil {
		return "", err
	}
	return req.Code, nil
}

func validate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range ve {
		if domain, ok := fieldErrors[fe.Field()]; ok && fe.Tag() != "max" {
			out[fe.Field()] = domain.Error()
			continue
		}
		out[fe.Field()] = fe.Error()
	}
	return out
}
