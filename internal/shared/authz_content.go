package shared

// Content, blog and media library permissions.
const (
	PermContentView    Permission = "content.view"
	PermContentCreate  Permission = "content.create"
	PermContentEdit    Permission = "content.edit"
	PermContentDelete  Permission = "content.delete"
	PermContentPublish Permission = "content.publish"

	PermBlogView    Permission = "blog.view"
	PermBlogCreate  Permission = "blog.create"
	PermBlogEdit    Permission = "blog.edit"
	PermBlogDelete  Permission = "blog.delete"
	PermBlogPublish Permission = "blog.publish"

	PermMediaView   Permission = "media.view"
	PermMediaUpload Permission = "media.upload"
	PermMediaEdit   Permission = "media.edit"
	PermMediaDelete Permission = "media.delete"
)

// ContentScopes lists all permissions related to site content.
func ContentScopes() []Permission {
	return []Permission{
		PermContentView,
		PermContentCreate,
		PermContentEdit,
		PermContentDelete,
		PermContentPublish,
		PermBlogView,
		PermBlogCreate,
		PermBlogEdit,
		PermBlogDelete,
		PermBlogPublish,
		PermMediaView,
		PermMediaUpload,
		PermMediaEdit,
		PermMediaDelete,
	}
}
