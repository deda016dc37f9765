package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamware/accessmanager/internal/graphstore"
	"github.com/dreamware/accessmanager/internal/opcoordinator"
)

// PublicServer exposes spec.md §6's client-facing REST surface over a
// Coordinator. Every handler is a thin translation: bind path/query
// params, call the Coordinator, map the result to a status code.
type PublicServer struct {
	coord *opcoordinator.Coordinator
}

// NewPublicServer builds a PublicServer over coord.
func NewPublicServer(coord *opcoordinator.Coordinator) *PublicServer {
	return &PublicServer{coord: coord}
}

// NewPublicRouter builds the gin.Engine for s.
func NewPublicRouter(s *PublicServer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")

	v1.POST("/users/:user", s.addUser)
	v1.DELETE("/users/:user", s.removeUser)

	v1.POST("/groups/:group", s.addGroup)
	v1.DELETE("/groups/:group", s.removeGroup)

	v1.POST("/groupToGroupMappings/fromGroup/:g1/toGroup/:g2", s.addGroupToGroup)
	v1.DELETE("/groupToGroupMappings/fromGroup/:g1/toGroup/:g2", s.removeGroupToGroup)

	v1.POST("/userToGroupMappings/user/:user/group/:group", s.addUserToGroup)
	v1.DELETE("/userToGroupMappings/user/:user/group/:group", s.removeUserToGroup)
	v1.GET("/userToGroupMappings/user/:user", s.userToGroupMappings)

	v1.POST("/userToComponentMappings/user/:user/applicationComponent/:component/accessLevel/:access", s.addUserToComponent)
	v1.DELETE("/userToComponentMappings/user/:user/applicationComponent/:component/accessLevel/:access", s.removeUserToComponent)

	v1.POST("/groupToComponentMappings/group/:group/applicationComponent/:component/accessLevel/:access", s.addGroupToComponent)
	v1.DELETE("/groupToComponentMappings/group/:group/applicationComponent/:component/accessLevel/:access", s.removeGroupToComponent)

	v1.GET("/dataElementAccess/applicationComponent/user/:user/applicationComponent/:component/accessLevel/:access", s.dataElementAccess)
	v1.GET("/dataElementAccess/applicationComponent/user/:user", s.accessibleComponents)

	v1.POST("/entityTypes/:type", s.addEntityType)
	v1.DELETE("/entityTypes/:type", s.removeEntityType)
	v1.GET("/entityTypes/:type", s.getEntityType)

	v1.POST("/entities/entityType/:type/entity/:entity", s.addEntity)
	v1.DELETE("/entities/entityType/:type/entity/:entity", s.removeEntity)

	v1.POST("/userToEntityMappings/user/:user/entityType/:type/entity/:entity", s.addUserToEntity)
	v1.DELETE("/userToEntityMappings/user/:user/entityType/:type/entity/:entity", s.removeUserToEntity)

	v1.POST("/groupToEntityMappings/group/:group/entityType/:type/entity/:entity", s.addGroupToEntity)
	v1.DELETE("/groupToEntityMappings/group/:group/entityType/:type/entity/:entity", s.removeGroupToEntity)

	return r
}

func (s *PublicServer) addUser(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	if err := s.coord.AddUser(c.Request.Context(), u); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeUser(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	if err := s.coord.RemoveUser(c.Request.Context(), u); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *PublicServer) addGroup(c *gin.Context) {
	g := graphstore.GroupID(c.Param("group"))
	if err := s.coord.AddGroup(c.Request.Context(), g); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeGroup(c *gin.Context) {
	g := graphstore.GroupID(c.Param("group"))
	if err := s.coord.RemoveGroup(c.Request.Context(), g); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *PublicServer) addGroupToGroup(c *gin.Context) {
	from, to := graphstore.GroupID(c.Param("g1")), graphstore.GroupID(c.Param("g2"))
	if err := s.coord.AddGroupToGroup(c.Request.Context(), from, to); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeGroupToGroup(c *gin.Context) {
	from, to := graphstore.GroupID(c.Param("g1")), graphstore.GroupID(c.Param("g2"))
	if err := s.coord.RemoveGroupToGroup(c.Request.Context(), from, to); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *PublicServer) addUserToGroup(c *gin.Context) {
	u, g := graphstore.UserID(c.Param("user")), graphstore.GroupID(c.Param("group"))
	if err := s.coord.AddUserToGroup(c.Request.Context(), u, g); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeUserToGroup(c *gin.Context) {
	u, g := graphstore.UserID(c.Param("user")), graphstore.GroupID(c.Param("group"))
	if err := s.coord.RemoveUserToGroup(c.Request.Context(), u, g); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type userGroupMapping struct {
	User  graphstore.UserID  `json:"user"`
	Group graphstore.GroupID `json:"group"`
}

func (s *PublicServer) userToGroupMappings(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	transitive := c.Query("includeIndirectMappings") == "true"

	groups, err := s.coord.UserToGroups(c.Request.Context(), u, transitive)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]userGroupMapping, 0, len(groups))
	for _, g := range groups {
		out = append(out, userGroupMapping{User: u, Group: g})
	}
	c.JSON(http.StatusOK, out)
}

func (s *PublicServer) addUserToComponent(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	k := graphstore.ComponentID(c.Param("component"))
	a := graphstore.AccessLevel(c.Param("access"))
	if err := s.coord.AddUserToComponent(c.Request.Context(), u, k, a); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeUserToComponent(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	k := graphstore.ComponentID(c.Param("component"))
	a := graphstore.AccessLevel(c.Param("access"))
	if err := s.coord.RemoveUserToComponent(c.Request.Context(), u, k, a); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *PublicServer) addGroupToComponent(c *gin.Context) {
	g := graphstore.GroupID(c.Param("group"))
	k := graphstore.ComponentID(c.Param("component"))
	a := graphstore.AccessLevel(c.Param("access"))
	if err := s.coord.AddGroupToComponent(c.Request.Context(), g, k, a); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeGroupToComponent(c *gin.Context) {
	g := graphstore.GroupID(c.Param("group"))
	k := graphstore.ComponentID(c.Param("component"))
	a := graphstore.AccessLevel(c.Param("access"))
	if err := s.coord.RemoveGroupToComponent(c.Request.Context(), g, k, a); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *PublicServer) dataElementAccess(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	k := graphstore.ComponentID(c.Param("component"))
	a := graphstore.AccessLevel(c.Param("access"))

	has, err := s.coord.HasAccessToComponent(c.Request.Context(), u, k, a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, has)
}

func (s *PublicServer) accessibleComponents(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	accesses, err := s.coord.AccessibleByComponent(c.Request.Context(), u)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accesses)
}

func (s *PublicServer) addEntityType(c *gin.Context) {
	t := graphstore.EntityType(c.Param("type"))
	if err := s.coord.AddEntityType(c.Request.Context(), t); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeEntityType(c *gin.Context) {
	t := graphstore.EntityType(c.Param("type"))
	if err := s.coord.RemoveEntityType(c.Request.Context(), t); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *PublicServer) getEntityType(c *gin.Context) {
	t := graphstore.EntityType(c.Param("type"))
	exists, err := s.coord.EntityTypeExists(c.Request.Context(), t)
	if err != nil {
		respondError(c, err)
		return
	}
	if !exists {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorBody{Error: ErrorDetail{Code: "NotFound", Message: "entity type not found", Target: string(t)}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entityType": t})
}

func (s *PublicServer) addEntity(c *gin.Context) {
	t, e := graphstore.EntityType(c.Param("type")), graphstore.EntityID(c.Param("entity"))
	if err := s.coord.AddEntity(c.Request.Context(), t, e); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeEntity(c *gin.Context) {
	t, e := graphstore.EntityType(c.Param("type")), graphstore.EntityID(c.Param("entity"))
	if err := s.coord.RemoveEntity(c.Request.Context(), t, e); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *PublicServer) addUserToEntity(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	t, e := graphstore.EntityType(c.Param("type")), graphstore.EntityID(c.Param("entity"))
	if err := s.coord.AddUserToEntity(c.Request.Context(), u, t, e); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeUserToEntity(c *gin.Context) {
	u := graphstore.UserID(c.Param("user"))
	t, e := graphstore.EntityType(c.Param("type")), graphstore.EntityID(c.Param("entity"))
	if err := s.coord.RemoveUserToEntity(c.Request.Context(), u, t, e); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *PublicServer) addGroupToEntity(c *gin.Context) {
	g := graphstore.GroupID(c.Param("group"))
	t, e := graphstore.EntityType(c.Param("type")), graphstore.EntityID(c.Param("entity"))
	if err := s.coord.AddGroupToEntity(c.Request.Context(), g, t, e); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *PublicServer) removeGroupToEntity(c *gin.Context) {
	g := graphstore.GroupID(c.Param("group"))
	t, e := graphstore.EntityType(c.Param("type")), graphstore.EntityID(c.Param("entity"))
	if err := s.coord.RemoveGroupToEntity(c.Request.Context(), g, t, e); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
