package http

// registerV1Routes sets up the v1 API structure
// Read endpoints serve view models for the map frontend; maintenance
// endpoints control the refresh pipeline.
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware()) // Add X-API-Version: v1 header

	// Read endpoints - derived tables and camera for the current view
	{
		v1.GET("/readings", s.handleV1Readings)
		v1.GET("/districts", s.handleV1Districts)
		v1.GET("/summary", s.handleV1Summary)
		v1.GET("/viewport", s.handleV1Viewport)
		v1.GET("/levels", s.handleV1Levels)
	}

	// Maintenance endpoints - refresh and cache control
	{
		v1.POST("/refresh", s.handleV1Refresh)
		v1.POST("/cache/clear", s.handleV1CacheClear)
	}
}
