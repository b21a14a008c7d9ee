package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/enrollhub/enrollment-service/internal/domain"
)

// RegisterBindingValidations подключает свои правила к валидатору Gin.
// Вызывается один раз при сборке маршрутизатора.
func RegisterBindingValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("paymentmethod", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParsePaymentMethod(fl.Field().String())
		return ok
	})
}
