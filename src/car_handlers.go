package main

import (
	"log"
	"net/http"

	awslib "carhub/src/lib/aws"
	"carhub/src/types"
	"carhub/src/utils"

	"github.com/gin-gonic/gin"
)

func carHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/cars", func(ctx *gin.Context) {
			sellerId := ctx.GetUint("id")
			role := ctx.GetString("role")
			if role != string(types.ROLE_SELLER) && role != string(types.ROLE_ADMIN) {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "only sellers can create listings"})
				return
			}
			var body types.CreateCarRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			car, err := utils.CreateNewCar(&body, sellerId)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": car})
		}).
		PUT("/cars/:id/sold", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			sellerId := ctx.GetUint("id")
			if err := utils.MarkCarSold(params.ID, sellerId); err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"message": "car marked as sold"})
		}).
		POST("/cars/:id/photos", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body struct {
				Filename string `json:"filename" binding:"required"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			sellerId := ctx.GetUint("id")
			car, err := utils.GetCar(params.ID)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			if car.SellerID != sellerId {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "not your listing"})
				return
			}
			uploadURL, key, err := awslib.S3PresignPhotoUpload(car.ID, body.Filename)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not create upload URL"})
				return
			}
			if err := utils.AddCarPhotoKey(car.ID, body.Filename, key); err != nil {
				log.Printf("Error recording photo key [%s] on car [%d]: %s\n", key, car.ID, err.Error())
			}
			ctx.JSON(http.StatusOK, gin.H{"upload_url": uploadURL, "key": key})
		})
	return g
}

func publicCarHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/cars", func(ctx *gin.Context) {
			var filters types.CarsQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			cars, err := utils.GetCars(&filters)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": cars, "count": len(cars)})
		}).
		GET("/cars/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			car, err := utils.GetCar(params.ID)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			photoURLs := map[string]string{}
			if car.PhotoKeys != nil {
				for name, v := range *car.PhotoKeys {
					key, ok := v.(string)
					if !ok {
						continue
					}
					if url, err := awslib.S3PresignPhotoURL(key); err == nil {
						photoURLs[name] = *url
					}
				}
			}
			ctx.JSON(http.StatusOK, gin.H{"data": car, "photo_urls": photoURLs})
		})
	return g
}
