package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"carhub/src/common"
	"carhub/src/config"
	"carhub/src/lib"
	"carhub/src/types"
	"carhub/src/utils"

	"github.com/gin-gonic/gin"
)

func reservationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/reservations", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var body types.CreateReservationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			startsAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.AppointmentDate)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment date"})
				return
			}

			// Replayed requests with the same key return the original
			// reservation instead of double-booking.
			idemKey := ctx.GetHeader("X-Idempotency-Key")
			rd := lib.GetRedisClient()
			var idemRedisKey string
			if idemKey != "" && rd != nil {
				idemRedisKey = fmt.Sprintf("reservation:idem:%d:%s", userId, idemKey)
				set, err := rd.SetNX(context.Background(), idemRedisKey, "pending", 24*time.Hour).Result()
				if err == nil && !set {
					stored, err := rd.Get(context.Background(), idemRedisKey).Result()
					if err == nil && stored != "pending" {
						ctx.JSON(http.StatusOK, gin.H{"reservationId": stored, "replayed": true})
						return
					}
					ctx.JSON(http.StatusConflict, gin.H{"error": "request already in flight"})
					return
				}
			}

			reservation, err := utils.CreateReservation(&body, userId, startsAt)
			if err != nil {
				// A failed booking releases the key so the client's retry
				// reaches the booking core instead of a stale in-flight marker.
				if idemRedisKey != "" {
					rd.Del(context.Background(), idemRedisKey)
				}
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			if idemRedisKey != "" {
				rd.Set(context.Background(), idemRedisKey, strconv.Itoa(int(reservation.ID)), 24*time.Hour)
			}

			// The booking is durable here. Notification delivery is
			// best-effort and never fails the response.
			go func() {
				report := common.Dispatch(reservation.ID)
				log.Printf("Dispatch report for reservation [%d]: sent=%d failed=%d\n",
					reservation.ID, report.Sent(), report.Failed())
			}()
			if car, err := utils.GetCar(reservation.CarID); err == nil {
				common.ScheduleReminder(reservation, car.Title, ctx.GetString("email"))
			}

			ctx.JSON(http.StatusCreated, gin.H{"reservationId": reservation.ID, "data": reservation})
		}).
		POST("/reservations/cancel", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var body types.CancelReservationRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			reservation, err := utils.CancelReservation(body.ReservationID, userId)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			go func() {
				report := common.Dispatch(reservation.ID)
				log.Printf("Dispatch report for cancelled reservation [%d]: sent=%d failed=%d\n",
					reservation.ID, report.Sent(), report.Failed())
			}()
			ctx.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("reservation [%d] cancelled", reservation.ID)})
		}).
		GET("/reservations", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			sellerQuery := ctx.Query("seller")
			forSeller, _ := strconv.ParseBool(sellerQuery)
			if forSeller {
				reservations, err := utils.GetSellerReservations(userId)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"data": reservations, "count": len(reservations)})
				return
			}
			reservations, err := utils.GetOwnReservations(userId)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reservations, "count": len(reservations)})
		}).
		GET("/reservations/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			reservation, err := utils.GetReservation(params.ID)
			if err != nil {
				ctx.JSON(types.ErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			isOwner := reservation.UserID == userId
			isSeller := reservation.Car != nil && reservation.Car.SellerID == userId
			if !isOwner && !isSeller {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reservation})
		})
	return g
}
