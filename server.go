package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/middlewares"
	"bitbucket.org/frioaustral/plant_backend/models"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"bitbucket.org/frioaustral/plant_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	config.ConnectStoreWithRetry()

	router := gin.Default()
	router.Use(cors.New(corsConfig()))
	router.Use(middlewares.SessionMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/signin", signinHandler)

	api := router.Group("/", middlewares.RequireUser())
	{
		api.GET("/work-center", workCenterHandler)
		api.POST("/work-center", switchWorkCenterHandler)

		api.GET("/receptions", listReceptionsHandler)
		api.POST("/receptions", createReceptionHandler)
		api.PUT("/receptions/:id", updateReceptionHandler)
		api.POST("/receptions/next-folio", nextFolioHandler)
		api.POST("/receptions/reassign-folios", reassignFoliosHandler)

		api.GET("/lots", listLotsHandler)
		api.POST("/lots", createLotHandler)
		api.PUT("/lots/:id", updateLotHandler)
		api.POST("/lots/bulk-update", bulkUpdateHandler)

		api.GET("/stock/grouped", groupedStockHandler)
		api.GET("/stock/available", availableStockHandler)
		api.DELETE("/stock/folios/:folio", deleteFolioHandler)

		api.GET("/materials", listMaterialsHandler)
		api.POST("/materials", createMaterialHandler)
		api.PUT("/materials/:id", updateMaterialHandler)
		api.POST("/materials/withdraw", withdrawMaterialHandler)
		api.GET("/materials/movements", listMovementsHandler)
		api.GET("/materials/availability", materialAvailabilityHandler)

		api.GET("/dispatches", listDispatchesHandler)
		api.POST("/dispatches", createDispatchHandler)

		api.GET("/iqf/remaining", iqfRemainingHandler)
		api.GET("/iqf/pallets", listIqfPalletsHandler)
		api.POST("/iqf/pallets", createIqfPalletHandler)
		api.PUT("/iqf/pallets/:id", updateIqfPalletHandler)
		api.DELETE("/iqf/pallets/:id", removeIqfPalletHandler)
		api.POST("/iqf/dispatch", dispatchIqfHandler)

		api.GET("/employees", listEmployeesHandler)
		api.POST("/employees", createEmployeeHandler)

		api.POST("/admin/reset/:module", resetModuleHandler)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if store := config.GetStore(); store != nil {
		if err := store.Close(); err != nil {
			log.Printf("store close: %v", err)
		}
	}
}

func corsConfig() cors.Config {
	corsCfg := cors.DefaultConfig()
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(origins, ",")
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "token", "x-correlation-id")
	return corsCfg
}

// statusForError maps the models error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrWorkCenterRequired):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientStock), errors.Is(err, models.ErrAlreadyDispatched):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	config.LogError(config.GetLogger(), "server.go", c.HandlerName(), c.FullPath(), nil, err)
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// requireConfirm is the confirmation gate for destructive operations: the
// caller must send ?confirm=true after its own user-facing confirmation step.
func requireConfirm(c *gin.Context) bool {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation required: pass confirm=true"})
		return false
	}
	return true
}

func signinHandler(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := models.AuthenticateUser(input.Username, input.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":               user.Token,
		"name":                user.Name,
		"default_work_center": user.DefaultWorkCenter,
	})
}

func workCenterHandler(c *gin.Context) {
	workCenter, err := models.PersistedWorkCenter()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_work_center": workCenter})
}

func switchWorkCenterHandler(c *gin.Context) {
	var input struct {
		WorkCenter string `json:"work_center" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.SwitchWorkCenter(c.Request.Context(), input.WorkCenter); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_work_center": input.WorkCenter})
}

func listReceptionsHandler(c *gin.Context) {
	receptions, err := models.ListReceptions(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, receptions)
}

func createReceptionHandler(c *gin.Context) {
	var input models.NewReception
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reception, err := models.CreateReception(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reception)
}

func updateReceptionHandler(c *gin.Context) {
	var input models.NewReception
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reception, err := models.UpdateReception(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reception)
}

// nextFolioHandler previews the next folio for an entry session. The staged
// pallets of the session ride in the request body so the sequencer can see
// not-yet-submitted folios.
func nextFolioHandler(c *gin.Context) {
	var input struct {
		ProducerCode string                `json:"producer_code"`
		Staged       []models.PalletDetail `json:"staged"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	folio, err := models.NextFolio(input.ProducerCode, input.Staged)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folio": folio})
}

// reassignFoliosHandler rewrites the session's placeholder folios after the
// operator picks (or changes) the producer, renumbering against that code's
// history. Pallets already on a real code keep their folios.
func reassignFoliosHandler(c *gin.Context) {
	var input struct {
		ProducerCode string                `json:"producer_code" binding:"required"`
		Staged       []models.PalletDetail `json:"staged" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	receptions, err := models.ListCollection[models.Reception](models.CollectionReceptions)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"staged": models.ReassignPlaceholderFolios(receptions, input.Staged, input.ProducerCode),
	})
}

func listLotsHandler(c *gin.Context) {
	lots, err := models.ListLots(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, lots)
}

func createLotHandler(c *gin.Context) {
	var input models.NewProductionLot
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lot, err := models.CreateLot(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

func updateLotHandler(c *gin.Context) {
	var input models.UpdateProductionLot
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lot, err := models.UpdateLot(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

func bulkUpdateHandler(c *gin.Context) {
	var input struct {
		Updates []models.StockUpdate `json:"updates" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lots, err := workflow.BulkUpdateStockItems(c.Request.Context(), input.Updates)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, lots)
}

func groupedStockHandler(c *gin.Context) {
	groups, err := models.GroupedFinishedGoods(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func availableStockHandler(c *gin.Context) {
	rows, err := models.AvailableFinishedGoods(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func deleteFolioHandler(c *gin.Context) {
	if !requireConfirm(c) {
		return
	}
	removed, err := workflow.DeleteFolio(c.Request.Context(), c.Param("folio"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed_lines": removed})
}

func listMaterialsHandler(c *gin.Context) {
	materials, err := models.ListMaterials(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, materials)
}

func createMaterialHandler(c *gin.Context) {
	var input models.NewMaterial
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	material, err := models.CreateMaterial(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, material)
}

func updateMaterialHandler(c *gin.Context) {
	var input models.NewMaterial
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	material, err := models.UpdateMaterial(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, material)
}

func withdrawMaterialHandler(c *gin.Context) {
	var input struct {
		Name     string          `json:"name" binding:"required"`
		Quantity decimal.Decimal `json:"quantity" binding:"required"`
		Reason   string          `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	withdrawal, err := workflow.RemoveMaterial(c.Request.Context(), input.Name, input.Quantity, input.Reason)
	if err != nil {
		// partial deduction already happened and is reported alongside
		if errors.Is(err, models.ErrInsufficientStock) && withdrawal != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "withdrawal": withdrawal})
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal)
}

func listMovementsHandler(c *gin.Context) {
	movements, err := models.ListMaterialMovements(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func materialAvailabilityHandler(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	available, err := models.AvailableMaterial(c.Request.Context(), name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "available": available})
}

func listDispatchesHandler(c *gin.Context) {
	dispatches, err := models.ListDispatches(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispatches)
}

func createDispatchHandler(c *gin.Context) {
	var input models.NewDispatch
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dispatch, err := models.CreateDispatch(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dispatch)
}

func iqfRemainingHandler(c *gin.Context) {
	remaining, err := models.IqfRemaining(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, remaining)
}

func listIqfPalletsHandler(c *gin.Context) {
	pallets, err := models.ListIqfPallets(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pallets)
}

func createIqfPalletHandler(c *gin.Context) {
	var input models.NewIqfPallet
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pallet, err := models.CreateIqfPallet(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pallet)
}

func updateIqfPalletHandler(c *gin.Context) {
	var input models.UpdateIqfPalletInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pallet, err := models.UpdateIqfPallet(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pallet)
}

func removeIqfPalletHandler(c *gin.Context) {
	if !requireConfirm(c) {
		return
	}
	if err := models.RemoveIqfPallet(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func dispatchIqfHandler(c *gin.Context) {
	var input struct {
		PalletIds []string `json:"pallet_ids" binding:"required"`
		Guide     string   `json:"guide" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := models.DispatchIqfPallets(c.Request.Context(), input.PalletIds, input.Guide); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func listEmployeesHandler(c *gin.Context) {
	employees, err := models.ListEmployees(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, employees)
}

func createEmployeeHandler(c *gin.Context) {
	var input models.NewEmployee
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	employee, err := models.CreateEmployee(c.Request.Context(), &input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

func resetModuleHandler(c *gin.Context) {
	if !requireConfirm(c) {
		return
	}
	userName, _ := utils.GetUserNameFromContext(c.Request.Context())
	if err := models.ResetModuleData(c.Request.Context(), c.Param("module")); err != nil {
		abortWithError(c, err)
		return
	}
	config.GetLogger().WithField("module", c.Param("module")).
		WithField("user", userName).
		Warn("module data reset")
	c.Status(http.StatusNoContent)
}
