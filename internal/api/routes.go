package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	cameras := s.router.Group("/cameras")
	{
		cameras.GET("", s.cameraHandler.ListCameras)
		cameras.GET("/:id", s.cameraHandler.GetCameraStatus)
		cameras.POST("/:id/activate", s.cameraHandler.ActivateCamera)
		cameras.POST("/:id/deactivate", s.cameraHandler.DeactivateCamera)
		cameras.POST("/:id/processor", s.cameraHandler.SwapProcessor)
		cameras.GET("/:id/snapshot", s.streamHandler.Snapshot)
		cameras.GET("/:id/stream", s.streamHandler.StreamMJPEG)
	}

	s.router.GET("/ws/cameras/:id", s.streamHandler.StreamWebSocket)

	s.router.GET("/processors", s.processorHandler.ListProcessors)

	alerts := s.router.Group("/alerts")
	{
		alerts.GET("", s.alertHandler.ListAlerts)
		alerts.POST("/:id/read", s.alertHandler.MarkRead)
		alerts.POST("/read-all", s.alertHandler.MarkAllRead)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
